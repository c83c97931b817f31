//go:build !js && !wasm
// +build !js,!wasm

// Package storage persists the video catalog and the acoustic landmark index
// in a single sqlite database.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/VisualDNA/pkg/models"
)

const DefaultDBFile = "visualdna.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when a video or track does not exist.
var ErrNotFound = errors.New("not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Video is one catalog row. ID only records insertion order, which is the
// catalog order rankings break ties on.
type Video struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	Filename    string  `gorm:"uniqueIndex:idx_video_filename;not null"`
	Fingerprint string  `gorm:"type:text"`
	AudioID     *string `gorm:"type:varchar(36);index:idx_video_audio"`
	FrameCount  int
	DurationMs  int
	SourceURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Track struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Label      string `gorm:"index:idx_track_label"`
	DurationMs int
	CreatedAt  time.Time
}

type Landmark struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash"`
	TrackID      string `gorm:"type:varchar(36);index:idx_track"`
	AnchorTimeMs uint32
}

// Stats summarises table sizes.
type Stats struct {
	Videos    int64
	Tracks    int64
	Landmarks int64
}

// NewDBClient opens the database at $VISUALDNA_DB_PATH or DefaultDBFile.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("VISUALDNA_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Video{}, &Track{}, &Landmark{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

// ------------------------ Videos ------------------------

// UpsertVideos inserts videos, or updates the fingerprint, audio id and
// metadata of rows whose filename already exists. Existing rows keep their
// catalog position.
func (c *DBClient) UpsertVideos(videos []models.Video) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(videos) == 0 {
		return nil
	}

	// one statement may not touch the same row twice; the last copy wins
	last := make(map[string]int, len(videos))
	for i, v := range videos {
		last[v.Filename] = i
	}

	rows := make([]Video, 0, len(last))
	for i, v := range videos {
		if last[v.Filename] != i {
			continue
		}
		rows = append(rows, Video{
			Filename:    v.Filename,
			Fingerprint: v.Fingerprint,
			AudioID:     v.AudioID,
			FrameCount:  v.FrameCount,
			DurationMs:  v.DurationMs,
			SourceURL:   v.SourceURL,
		})
	}

	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filename"}},
		DoUpdates: clause.AssignmentColumns([]string{"fingerprint", "audio_id", "frame_count", "duration_ms", "source_url", "updated_at"}),
	}).CreateInBatches(rows, 500).Error
	if err != nil {
		return fmt.Errorf("upserting videos: %w", err)
	}
	return nil
}

func (c *DBClient) UpsertVideo(v models.Video) error {
	return c.UpsertVideos([]models.Video{v})
}

func (c *DBClient) GetVideo(filename string) (*models.Video, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row Video
	err := c.DB.Where("filename = ?", filename).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("video %q: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying video: %w", err)
	}
	v := row.model()
	return &v, nil
}

// ListVideos returns the catalog in insertion order.
func (c *DBClient) ListVideos() ([]models.Video, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []Video
	if err := c.DB.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	out := make([]models.Video, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (c *DBClient) DeleteVideo(filename string) error {
	if err := c.ready(); err != nil {
		return err
	}
	res := c.DB.Where("filename = ?", filename).Delete(&Video{})
	if res.Error != nil {
		return fmt.Errorf("deleting video: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("video %q: %w", filename, ErrNotFound)
	}
	return nil
}

func (r Video) model() models.Video {
	return models.Video{
		Filename:    r.Filename,
		Fingerprint: r.Fingerprint,
		AudioID:     r.AudioID,
		FrameCount:  r.FrameCount,
		DurationMs:  r.DurationMs,
		SourceURL:   r.SourceURL,
		CreatedAt:   r.CreatedAt,
	}
}

// ------------------------ Tracks & landmarks ------------------------

func (c *DBClient) RegisterTrack(label string, durationMs int) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	track := Track{ID: uuid.NewString(), Label: label, DurationMs: durationMs}
	if err := c.DB.Create(&track).Error; err != nil {
		return "", fmt.Errorf("creating track: %w", err)
	}
	return track.ID, nil
}

func (c *DBClient) GetTrack(trackID string) (*models.Track, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row Track
	err := c.DB.Where("id = ?", trackID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("track %q: %w", trackID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	return &models.Track{ID: row.ID, Label: row.Label, DurationMs: row.DurationMs}, nil
}

// DeleteTrack removes a track and all its landmarks.
func (c *DBClient) DeleteTrack(trackID string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&Landmark{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", trackID).Delete(&Track{}).Error
	})
}

func (c *DBClient) StoreLandmarks(buckets map[uint32][]models.Couple) error {
	if err := c.ready(); err != nil {
		return err
	}

	entries := make([]Landmark, 0, 1024)
	flush := func() error {
		if len(entries) == 0 {
			return nil
		}
		if err := c.DB.CreateInBatches(entries, 500).Error; err != nil {
			return fmt.Errorf("batch insert landmarks: %w", err)
		}
		entries = entries[:0]
		return nil
	}

	for hash, couples := range buckets {
		for _, cou := range couples {
			entries = append(entries, Landmark{Hash: hash, TrackID: cou.TrackID, AnchorTimeMs: cou.AnchorTimeMs})
			if len(entries) >= 1000 {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// CouplesByHashes loads every stored couple for the given hashes, querying
// in chunks to stay under sqlite's bound-parameter limit.
func (c *DBClient) CouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	result := make(map[uint32][]models.Couple)

	const chunk = 500
	for start := 0; start < len(hashes); start += chunk {
		end := min(start+chunk, len(hashes))
		var rows []Landmark
		if err := c.DB.Where("hash IN ?", hashes[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("batch querying landmarks: %w", err)
		}
		for _, r := range rows {
			result[r.Hash] = append(result[r.Hash], models.Couple{TrackID: r.TrackID, AnchorTimeMs: r.AnchorTimeMs})
		}
	}
	return result, nil
}

func (c *DBClient) LandmarkCount(trackID string) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	var count int64
	if err := c.DB.Model(&Landmark{}).Where("track_id = ?", trackID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (c *DBClient) Stats() (Stats, error) {
	if err := c.ready(); err != nil {
		return Stats{}, err
	}
	var s Stats
	if err := c.DB.Model(&Video{}).Count(&s.Videos).Error; err != nil {
		return Stats{}, err
	}
	if err := c.DB.Model(&Track{}).Count(&s.Tracks).Error; err != nil {
		return Stats{}, err
	}
	if err := c.DB.Model(&Landmark{}).Count(&s.Landmarks).Error; err != nil {
		return Stats{}, err
	}
	return s, nil
}
