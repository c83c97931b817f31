package acoustic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/VisualDNA/pkg/models"
)

// LandmarkStore persists tracks and their landmark buckets.
type LandmarkStore interface {
	RegisterTrack(label string, durationMs int) (string, error)
	StoreLandmarks(buckets map[uint32][]models.Couple) error
	CouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error)
	LandmarkCount(trackID string) (int, error)
	DeleteTrack(trackID string) error
}

// Config tunes analysis and the match threshold.
type Config struct {
	WindowSize    int
	HopSize       int
	MinConfidence float64 // percent
	MinVotes      int
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		WindowSize:    WindowSize,
		HopSize:       HopSize,
		MinConfidence: 50,
		MinVotes:      5,
	}
}

// Identification is the best candidate track for a query.
type Identification struct {
	TrackID    string
	Votes      int
	OffsetMs   int32
	Confidence float64
	Matched    bool // Confidence and Votes both reach the configured minimum
}

// Identifier registers and looks up audio tracks.
type Identifier struct {
	store LandmarkStore
	cfg   Config
}

func NewIdentifier(store LandmarkStore, cfg Config) *Identifier {
	def := DefaultConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.HopSize <= 0 {
		cfg.HopSize = def.HopSize
	}
	if cfg.MinVotes <= 0 {
		cfg.MinVotes = def.MinVotes
	}
	return &Identifier{store: store, cfg: cfg}
}

// Analyze turns mono samples into landmarks.
func (id *Identifier) Analyze(samples []float64, sampleRate int) ([]Landmark, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	spec, err := Spectrogram(samples, id.cfg.WindowSize, id.cfg.HopSize)
	if err != nil {
		return nil, err
	}
	peaks := ExtractPeaks(spec, sampleRate, id.cfg.WindowSize, id.cfg.HopSize)
	return Landmarks(peaks), nil
}

// Identify finds the track the samples most likely come from. A zero
// Identification (empty TrackID) means no candidate had any vote.
func (id *Identifier) Identify(ctx context.Context, samples []float64, sampleRate int) (Identification, error) {
	lms, err := id.Analyze(samples, sampleRate)
	if err != nil {
		return Identification{}, err
	}
	if err := ctx.Err(); err != nil {
		return Identification{}, err
	}
	return id.identifyLandmarks(lms)
}

func (id *Identifier) identifyLandmarks(lms []Landmark) (Identification, error) {
	hashes := UniqueHashes(lms)
	if len(hashes) == 0 {
		return Identification{}, nil
	}

	db, err := id.store.CouplesByHashes(hashes)
	if err != nil {
		return Identification{}, fmt.Errorf("loading landmarks: %w", err)
	}

	matches := Vote(lms, db)
	if len(matches) == 0 {
		return Identification{}, nil
	}

	best := Identification{}
	for _, m := range matches {
		trackHashes, err := id.store.LandmarkCount(m.TrackID)
		if err != nil {
			trackHashes = len(hashes)
		}
		conf := Confidence(m.Count, len(hashes), trackHashes)
		if best.TrackID == "" || conf > best.Confidence {
			best = Identification{TrackID: m.TrackID, Votes: m.Count, OffsetMs: m.OffsetMs, Confidence: conf}
		}
	}
	best.Matched = best.Confidence >= id.cfg.MinConfidence && best.Votes >= id.cfg.MinVotes
	return best, nil
}

// Register stores the samples as a track and returns its id. When the audio
// already identifies as an existing track, that id is returned with reused
// set and nothing is stored, so videos sharing a soundtrack share a key.
func (id *Identifier) Register(ctx context.Context, samples []float64, sampleRate int, label string) (trackID string, reused bool, err error) {
	lms, err := id.Analyze(samples, sampleRate)
	if err != nil {
		return "", false, err
	}
	if len(lms) == 0 {
		return "", false, ErrNoSamples
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	existing, err := id.identifyLandmarks(lms)
	if err != nil {
		return "", false, err
	}
	if existing.Matched {
		return existing.TrackID, true, nil
	}

	durationMs := int(float64(len(samples)) / float64(sampleRate) * 1000)
	trackID, err = id.store.RegisterTrack(label, durationMs)
	if err != nil {
		return "", false, fmt.Errorf("registering track: %w", err)
	}
	if err := id.store.StoreLandmarks(Buckets(lms, trackID)); err != nil {
		_ = id.store.DeleteTrack(trackID)
		return "", false, fmt.Errorf("storing landmarks: %w", err)
	}
	return trackID, false, nil
}

// Confidence maps a vote count to a percentage with a logistic curve over
// votes / min(queryHashes, trackHashes). Ratios past 0.30 get a linear boost
// and fewer than 5 votes are scaled down.
func Confidence(votes, queryHashes, trackHashes int) float64 {
	if votes <= 0 || queryHashes <= 0 || trackHashes <= 0 {
		return 0
	}

	ref := min(queryHashes, trackHashes)
	ratio := float64(votes) / float64(ref)

	const (
		steepness = 20.0
		midpoint  = 0.15
	)
	conf := 100 / (1 + math.Exp(-steepness*(ratio-midpoint)))

	if ratio > 0.30 {
		conf = math.Min(100, conf+(ratio-0.30)*50)
	}
	if votes < 5 {
		conf *= float64(votes) / 5
	}
	return conf
}
