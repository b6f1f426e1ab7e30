package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	r := New()
	start := time.Now().Add(-time.Second)
	r.ObserveRun(KindBacktest, ResultOK, start)
	r.ObserveRun(KindBacktest, ResultOK, start)
	r.ObserveRun(KindOptimize, ResultPartial, start)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Runs.WithLabelValues(KindBacktest, ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues(KindOptimize, ResultPartial)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.RunDuration))
}

func TestCacheLookups(t *testing.T) {
	r := New()
	r.CacheHit(KindBacktest)
	r.CacheMiss(KindBacktest)
	r.CacheMiss(KindBacktest)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues(KindBacktest, "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues(KindBacktest, "miss")))
}

func TestHandler(t *testing.T) {
	r := New()
	r.ReturnPercent.WithLabelValues("SPY").Set(12.5)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wyckoff_return_percent{symbol="SPY"} 12.5`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
