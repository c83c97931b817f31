package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidWeights is returned when a Weights pair is out of range or does
// not sum to 100.
var ErrInvalidWeights = errors.New("invalid weights")

// CatalogEntry is one reference video in a search catalog.
type CatalogEntry struct {
	Filename    string  // unique key
	Fingerprint string  // packed visual fingerprint (hex)
	AudioID     *string // acoustic track id, nil when unknown
}

// ScoreResult is the score of one catalog entry against a target.
type ScoreResult struct {
	Filename    string  `json:"filename"`
	VisualScore float64 `json:"visual_score"` // [0, 100]
	AudioScore  float64 `json:"audio_score"`  // 0 or 100
	FinalScore  float64 `json:"final_score"`  // [0, 100]
}

// Weights is the visual/audio split of the final score, in percent.
type Weights struct {
	Visual float64 `json:"visual_weight"`
	Audio  float64 `json:"audio_weight"`
}

// DefaultWeights ranks on visual similarity only.
var DefaultWeights = Weights{Visual: 100, Audio: 0}

// WeightsFromVisual builds the pair a single visual slider describes.
func WeightsFromVisual(visual float64) Weights {
	return Weights{Visual: visual, Audio: 100 - visual}
}

// Validate checks that both weights are in [0, 100] and sum to 100.
func (w Weights) Validate() error {
	if math.IsNaN(w.Visual) || math.IsNaN(w.Audio) {
		return fmt.Errorf("%w: NaN weight", ErrInvalidWeights)
	}
	if w.Visual < 0 || w.Visual > 100 || w.Audio < 0 || w.Audio > 100 {
		return fmt.Errorf("%w: visual=%g audio=%g must be within [0, 100]", ErrInvalidWeights, w.Visual, w.Audio)
	}
	if math.Abs(w.Visual+w.Audio-100) > 1e-9 {
		return fmt.Errorf("%w: visual=%g + audio=%g != 100", ErrInvalidWeights, w.Visual, w.Audio)
	}
	return nil
}

// SkippedEntry is a catalog entry left out of a ranking, with the reason.
type SkippedEntry struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// SearchResult is everything one search produced.
type SearchResult struct {
	TargetFilename string         `json:"target_filename"`
	FrameCount     int            `json:"frame_count"`
	AudioID        *string        `json:"audio_id,omitempty"`
	Results        []ScoreResult  `json:"results"`
	Skipped        []SkippedEntry `json:"skipped,omitempty"`
	Elapsed        time.Duration  `json:"elapsed_ns"`
}

// Video is a catalog row as persisted by the catalog store.
type Video struct {
	Filename    string    `json:"filename"`
	Fingerprint string    `json:"fingerprint"`
	AudioID     *string   `json:"audio_id,omitempty"`
	FrameCount  int       `json:"frame_count"`
	DurationMs  int       `json:"duration_ms"`
	SourceURL   string    `json:"source_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Entry converts a stored video into a ranking input.
func (v Video) Entry() CatalogEntry {
	return CatalogEntry{Filename: v.Filename, Fingerprint: v.Fingerprint, AudioID: v.AudioID}
}

// Track is an audio track registered in the acoustic index.
type Track struct {
	ID         string // UUID
	Label      string // filename of the video the track was first seen in
	DurationMs int
}
