// Package metrics holds the Prometheus collectors for searches, indexing and
// the HTTP API.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeDecodeFailure = "decode_failure"
	OutcomeEmptyTarget   = "empty_target"
	OutcomeInvalid       = "invalid_request"
	OutcomeError         = "error"
)

var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visualdna",
			Name:      "searches_total",
			Help:      "Total number of searches by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "visualdna",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	EntriesScoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visualdna",
			Name:      "catalog_entries_scored_total",
			Help:      "Catalog entries scored against a target",
		},
	)

	EntriesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visualdna",
			Name:      "catalog_entries_skipped_total",
			Help:      "Catalog entries skipped because their fingerprint was corrupt",
		},
	)

	AudioLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visualdna",
			Name:      "audio_lookups_total",
			Help:      "Audio identification attempts by result",
		},
		[]string{"result"}, // "match" / "miss" / "failed"
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visualdna",
			Name:      "fingerprint_cache_total",
			Help:      "Fingerprint cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visualdna",
			Name:      "videos_indexed_total",
			Help:      "Videos fingerprinted and upserted into the catalog",
		},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SearchesTotal,
			SearchDuration,
			EntriesScoredTotal,
			EntriesSkippedTotal,
			AudioLookupsTotal,
			CacheTotal,
			IndexedTotal,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}

// ObserveSearch records one finished search.
func ObserveSearch(outcome string, elapsed time.Duration, scored, skipped int) {
	SearchesTotal.WithLabelValues(outcome).Inc()
	SearchDuration.Observe(elapsed.Seconds())
	if scored > 0 {
		EntriesScoredTotal.Add(float64(scored))
	}
	if skipped > 0 {
		EntriesSkippedTotal.Add(float64(skipped))
	}
}
