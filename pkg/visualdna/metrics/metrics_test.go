package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/catalog/{filename}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, name := range []string{"a.mp4", "b.mp4"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/catalog/"+name, http.NoBody))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/catalog/{filename}", "404"))
	assert.GreaterOrEqual(t, got, 2.0)
	assert.Positive(t, testutil.CollectAndCount(httpRequestDuration))
}

func TestMiddlewareDefaultStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/api/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/search", http.NoBody))

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/search", "200"))
	assert.GreaterOrEqual(t, got, 1.0)
}

func TestObserveSearch(t *testing.T) {
	beforeScored := testutil.ToFloat64(EntriesScoredTotal)
	beforeSkipped := testutil.ToFloat64(EntriesSkippedTotal)
	beforeOK := testutil.ToFloat64(SearchesTotal.WithLabelValues(OutcomeOK))

	ObserveSearch(OutcomeOK, 250*time.Millisecond, 7, 2)
	ObserveSearch(OutcomeEmptyTarget, time.Millisecond, 0, 0)

	assert.Equal(t, beforeScored+7, testutil.ToFloat64(EntriesScoredTotal))
	assert.Equal(t, beforeSkipped+2, testutil.ToFloat64(EntriesSkippedTotal))
	assert.Equal(t, beforeOK+1, testutil.ToFloat64(SearchesTotal.WithLabelValues(OutcomeOK)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(SearchesTotal.WithLabelValues(OutcomeEmptyTarget)), 1.0)
}

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}
