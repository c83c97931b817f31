// Package rank scores a target fingerprint against a catalog and returns the
// best matches.
package rank

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
)

// DefaultTopK is the number of results returned when TopK is not set.
const DefaultTopK = 3

// AudioMatchScore is the audio score of an entry sharing the target's track.
const AudioMatchScore = 100.0

// ErrEmptyTarget is returned when the target fingerprint holds no frames, so
// no visual comparison is possible. Callers must report it instead of an
// all-zero ranking.
var ErrEmptyTarget = errors.New("target fingerprint is empty")

// SearchRequest is one ranking job. Nothing in it is mutated by Rank.
type SearchRequest struct {
	TargetFilename    string
	TargetFingerprint fingerprint.Fingerprint
	TargetAudioID     *string
	Catalog           []models.CatalogEntry
	Weights           models.Weights
	TopK              int // <= 0 means DefaultTopK
	Workers           int // <= 0 means GOMAXPROCS
}

// Ranking is the outcome of Rank.
type Ranking struct {
	Results []models.ScoreResult
	Skipped []models.SkippedEntry
	Scored  int // entries that produced a score, before the top-k cut
}

type slot struct {
	result  models.ScoreResult
	skipped *models.SkippedEntry
	self    bool
}

// Rank scores every catalog entry except the target itself and returns the
// TopK entries by final score, highest first. Ties keep catalog order.
// Entries whose fingerprint cannot be unpacked are skipped and listed in
// Ranking.Skipped. An empty catalog yields an empty ranking, not an error.
func Rank(ctx context.Context, req SearchRequest) (*Ranking, error) {
	if req.TargetFingerprint.Empty() {
		return nil, ErrEmptyTarget
	}
	if err := req.Weights.Validate(); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	slots := make([]slot, len(req.Catalog))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range req.Catalog {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = scoreEntry(req, req.Catalog[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring catalog: %w", err)
	}

	out := &Ranking{Results: make([]models.ScoreResult, 0, len(slots))}
	for _, s := range slots {
		switch {
		case s.self:
		case s.skipped != nil:
			out.Skipped = append(out.Skipped, *s.skipped)
		default:
			out.Results = append(out.Results, s.result)
		}
	}
	out.Scored = len(out.Results)

	sort.SliceStable(out.Results, func(a, b int) bool {
		return out.Results[a].FinalScore > out.Results[b].FinalScore
	})
	if len(out.Results) > topK {
		out.Results = out.Results[:topK]
	}
	return out, nil
}

func scoreEntry(req SearchRequest, entry models.CatalogEntry) slot {
	if entry.Filename == req.TargetFilename {
		return slot{self: true}
	}

	fp, err := fingerprint.Unpack(entry.Fingerprint)
	if err != nil {
		return slot{skipped: &models.SkippedEntry{Filename: entry.Filename, Reason: err.Error()}}
	}

	visual := fingerprint.Similarity(req.TargetFingerprint, fp)
	audio := AudioScore(req.TargetAudioID, entry.AudioID)
	return slot{result: models.ScoreResult{
		Filename:    entry.Filename,
		VisualScore: visual,
		AudioScore:  audio,
		FinalScore:  Combine(visual, audio, req.Weights),
	}}
}

// AudioScore is AudioMatchScore when both ids are present and equal, else 0.
func AudioScore(target, entry *string) float64 {
	if target == nil || entry == nil || *target == "" {
		return 0
	}
	if *target == *entry {
		return AudioMatchScore
	}
	return 0
}

// Combine weights the visual and audio scores into the final score.
func Combine(visual, audio float64, w models.Weights) float64 {
	return visual*(w.Visual/100) + audio*(w.Audio/100)
}
