package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/catalog"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
)

// MaxFingerprintFrames bounds POST /api/search/fingerprint bodies (~2h of
// video at two samples per second).
const MaxFingerprintFrames = 14400

// Error codes carried in ErrorResponse.Error.
const (
	codeBadRequest         = "bad_request"
	codeUnauthorized       = "unauthorized"
	codeDecodeFailure      = "decode_failure"
	codeEmptyTarget        = "empty_target"
	codeInvalidWeights     = "invalid_weights"
	codeCorruptFingerprint = "corrupt_fingerprint"
	codeNotFound           = "not_found"
	codeTooLarge           = "too_large"
	codeInternal           = "internal_error"
)

// SearchFingerprintRequest is the request body for POST /api/search/fingerprint.
type SearchFingerprintRequest struct {
	// Filename names the target for self-exclusion; optional.
	Filename string `json:"filename"`
	// Fingerprint is the packed hex fingerprint, 16 characters per frame.
	Fingerprint string  `json:"fingerprint"`
	AudioID     *string `json:"audio_id,omitempty"`
	// VisualWeight defaults to the server's configured weight when nil.
	VisualWeight *float64 `json:"visual_weight,omitempty"`
	TopK         int      `json:"top_k,omitempty"`
}

// Validate checks the request and decodes the fingerprint.
func (r *SearchFingerprintRequest) Validate() (fingerprint.Fingerprint, error) {
	if r.TopK < 0 {
		return nil, fmt.Errorf("top_k must not be negative")
	}
	fp, err := fingerprint.Unpack(r.Fingerprint)
	if err != nil {
		return nil, err
	}
	if fp.Len() > MaxFingerprintFrames {
		return nil, fmt.Errorf("too many frames: %d (maximum: %d)", fp.Len(), MaxFingerprintFrames)
	}
	return fp, nil
}

// Weights returns the requested weights, or nil for the server default.
func (r *SearchFingerprintRequest) Weights() *models.Weights {
	if r.VisualWeight == nil {
		return nil
	}
	w := models.WeightsFromVisual(*r.VisualWeight)
	return &w
}

// SearchResponse is the response for both search endpoints.
type SearchResponse struct {
	Target    string       `json:"target"`
	Frames    int          `json:"frames"`
	AudioID   *string      `json:"audio_id,omitempty"`
	Results   []ScoreDTO   `json:"results"`
	Count     int          `json:"count"`
	Skipped   []SkippedDTO `json:"skipped,omitempty"`
	ElapsedMs int64        `json:"elapsed_ms"`
}

// ScoreDTO is one ranked catalog entry.
type ScoreDTO struct {
	Rank         int     `json:"rank"`
	Filename     string  `json:"filename"`
	Score        float64 `json:"score"`
	VisualScore  float64 `json:"visual_score"`
	AudioMatched bool    `json:"audio_matched"`
}

type SkippedDTO struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

func newSearchResponse(res *models.SearchResult) SearchResponse {
	out := SearchResponse{
		Target:    res.TargetFilename,
		Frames:    res.FrameCount,
		AudioID:   res.AudioID,
		Results:   make([]ScoreDTO, len(res.Results)),
		Count:     len(res.Results),
		ElapsedMs: res.Elapsed.Milliseconds(),
	}
	for i, r := range res.Results {
		out.Results[i] = ScoreDTO{
			Rank:         i + 1,
			Filename:     r.Filename,
			Score:        r.FinalScore,
			VisualScore:  r.VisualScore,
			AudioMatched: r.AudioScore > 0,
		}
	}
	for _, sk := range res.Skipped {
		out.Skipped = append(out.Skipped, SkippedDTO{Filename: sk.Filename, Reason: sk.Reason})
	}
	return out
}

// VideoDTO represents a catalog entry in API responses. The packed
// fingerprint is only included on single-entry lookups.
type VideoDTO struct {
	Filename    string    `json:"filename"`
	Frames      int       `json:"frames"`
	DurationMs  int       `json:"duration_ms"`
	AudioID     *string   `json:"audio_id,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

func newVideoDTO(v *models.Video, withFingerprint bool) VideoDTO {
	dto := VideoDTO{
		Filename:   v.Filename,
		Frames:     v.FrameCount,
		DurationMs: v.DurationMs,
		AudioID:    v.AudioID,
		SourceURL:  v.SourceURL,
		CreatedAt:  v.CreatedAt,
	}
	if withFingerprint {
		dto.Fingerprint = v.Fingerprint
	}
	return dto
}

// ListVideosResponse is the response for GET /api/catalog.
type ListVideosResponse struct {
	Videos []VideoDTO `json:"videos"`
	Count  int        `json:"count"`
}

// DeleteVideoResponse is the response for DELETE /api/catalog/{filename}.
type DeleteVideoResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

// IndexResponse is the response for POST /api/catalog.
type IndexResponse struct {
	Message string   `json:"message"`
	Video   VideoDTO `json:"video"`
}

// ImportResponse is the response for POST /api/catalog/import.
type ImportResponse struct {
	Imported int           `json:"imported"`
	Rejected []RejectedDTO `json:"rejected"`
}

type RejectedDTO struct {
	Row      int    `json:"row"`
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

func newRejected(qs []catalog.Quarantined) []RejectedDTO {
	out := make([]RejectedDTO, len(qs))
	for i, q := range qs {
		reason := "invalid row"
		if q.Err != nil {
			reason = q.Err.Error()
		}
		out[i] = RejectedDTO{Row: q.Row, Filename: q.Filename, Reason: reason}
	}
	return out
}

// StatsResponse provides server health and database metrics.
type StatsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	Videos       int64  `json:"videos"`
	Tracks       int64  `json:"tracks"`
	Landmarks    int64  `json:"landmarks"`
	Hasher       string `json:"hasher"`
}

// ErrorResponse is the standard error response format. Error is a stable
// machine-readable code.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

var errMissingFile = errors.New("file is required")
