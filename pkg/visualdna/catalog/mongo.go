package catalog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDoc is the document shape of a catalog row.
type mongoDoc struct {
	Filename          string  `bson:"filename"`
	FingerprintVisual string  `bson:"fingerprint_visual,omitempty"`
	Fingerprint       string  `bson:"fingerprint,omitempty"`
	AudioID           *string `bson:"fingerprint_audio_id"`
}

// MongoSource reads and writes a catalog stored as one document per video.
type MongoSource struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSource connects to uri and uses database.collection.
func NewMongoSource(ctx context.Context, uri, database, collection string) (*MongoSource, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	return &MongoSource{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// Load reads every document in insertion order.
func (m *MongoSource) Load(ctx context.Context) (*Result, error) {
	cur, err := m.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return fromDocs(m.coll.Name(), docs), nil
}

func fromDocs(source string, docs []mongoDoc) *Result {
	b := newBuilder(source)
	for i, d := range docs {
		packed := d.FingerprintVisual
		if Absent(packed) {
			packed = d.Fingerprint
		}
		audio := ""
		if d.AudioID != nil {
			audio = *d.AudioID
		}
		b.add(i+1, d.Filename, packed, audio)
	}
	return &b.res
}

// Upsert writes records keyed by filename.
func (m *MongoSource) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "filename", Value: r.Filename}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{
				{Key: "fingerprint_visual", Value: r.Fingerprint.Pack()},
				{Key: "fingerprint_audio_id", Value: r.AudioID},
			}}}).
			SetUpsert(true))
	}
	if _, err := m.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("upserting catalog: %w", err)
	}
	return nil
}

func (m *MongoSource) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
