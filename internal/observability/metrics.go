// Package observability holds the Prometheus metrics shared by the CLI and
// serve mode.
package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/wx-briefing/internal/llm"
)

const namespace = "wx"

// Metrics implements the fetch, provider and forecaster observers.
type Metrics struct {
	FetchDuration    *prometheus.HistogramVec // labels: task, outcome={success,failure}
	ProviderAttempts *prometheus.CounterVec   // labels: provider, outcome
	Fallbacks        *prometheus.CounterVec   // labels: reason
	WorldviewBuilds  *prometheus.CounterVec   // labels: mode={online,offline}

	registry *prometheus.Registry
}

// NewMetrics creates the metrics on a private registry, so tests and
// repeated wiring never collide on the global one.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch task duration by task kind and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		}, []string{"task", "outcome"}),
		ProviderAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "AI provider attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_responses_total",
			Help:      "Deterministic fallback responses by reason.",
		}, []string{"reason"}),
		WorldviewBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worldview_builds_total",
			Help:      "Worldview builds by mode.",
		}, []string{"mode"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FetchDuration,
		m.ProviderAttempts,
		m.Fallbacks,
		m.WorldviewBuilds,
	)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one coordinator task.
func (m *Metrics) ObserveFetch(name string, elapsed time.Duration, succeeded bool) {
	outcome := "failure"
	if succeeded {
		outcome = "success"
	}
	m.FetchDuration.WithLabelValues(TaskKind(name), outcome).Observe(elapsed.Seconds())
}

// ObserveAttempt records one provider attempt.
func (m *Metrics) ObserveAttempt(provider string, outcome llm.Outcome) {
	m.ProviderAttempts.WithLabelValues(provider, string(outcome)).Inc()
}

// ObserveFallback records a fallback response.
func (m *Metrics) ObserveFallback(reason string) {
	m.Fallbacks.WithLabelValues(reason).Inc()
}

// ObserveWorldview records a worldview build.
func (m *Metrics) ObserveWorldview(offline bool) {
	mode := "online"
	if offline {
		mode = "offline"
	}
	m.WorldviewBuilds.WithLabelValues(mode).Inc()
}

// TaskKind drops a trailing numeric index so per-sample tasks share a label:
// "us:sample:3" becomes "us:sample".
func TaskKind(name string) string {
	i := strings.LastIndexByte(name, ':')
	if i < 0 {
		return name
	}
	if _, err := strconv.Atoi(name[i+1:]); err != nil {
		return name
	}
	return name[:i]
}
