package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wx-briefing/internal/llm"
)

func TestTaskKind(t *testing.T) {
	assert.Equal(t, "us:sample", TaskKind("us:sample:3"))
	assert.Equal(t, "eu:alerts", TaskKind("eu:alerts"))
	assert.Equal(t, "point_context", TaskKind("point_context"))
}

func TestObservers(t *testing.T) {
	m := NewMetrics()

	m.ObserveFetch("us:sample:1", 120*time.Millisecond, true)
	m.ObserveFetch("us:sample:2", 3*time.Second, false)
	m.ObserveAttempt("openrouter", llm.OutcomeRetried)
	m.ObserveAttempt("openrouter", llm.OutcomeRetried)
	m.ObserveFallback("exhausted")
	m.ObserveWorldview(true)

	assert.Equal(t, 2, testutil.CollectAndCount(m.FetchDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderAttempts.WithLabelValues("openrouter", "retried")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorldviewBuilds.WithLabelValues("offline")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveFallback("no-provider")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wx_fallback_responses_total{reason="no-provider"} 1`)
}

func TestIndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}
