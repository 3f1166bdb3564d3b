package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wx-briefing/internal/briefing"
	"github.com/i474232898/wx-briefing/internal/forecaster"
	"github.com/i474232898/wx-briefing/internal/observability"
	"github.com/i474232898/wx-briefing/internal/store"
	"github.com/i474232898/wx-briefing/internal/weather"
)

type stubBriefer struct {
	worldviews int
	forecast   briefing.ForecastParams
	hazards    []string
	ai         bool
}

func (s *stubBriefer) Worldview(_ context.Context, severeOnly bool) weather.Worldview {
	s.worldviews++
	return weather.Worldview{
		GeneratedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Meta:        weather.WorldviewMeta{SevereOnly: severeOnly, Sources: []string{"stub"}},
	}
}

func (s *stubBriefer) result(command, query string) *briefing.Result {
	return &briefing.Result{
		Command:  command,
		Query:    query,
		Response: &forecaster.Response{Provider: forecaster.ProviderOffline, BottomLine: "ok"},
	}
}

func (s *stubBriefer) Forecast(_ context.Context, p briefing.ForecastParams) *briefing.Result {
	s.forecast = p
	return s.result(briefing.CommandForecast, p.Place)
}

func (s *stubBriefer) Risk(_ context.Context, place string, hazards []string, _ bool) *briefing.Result {
	s.hazards = hazards
	return s.result(briefing.CommandRisk, place)
}

func (s *stubBriefer) Alerts(_ context.Context, place string, ai, _ bool) *briefing.Result {
	s.ai = ai
	return s.result(briefing.CommandAlerts, place)
}

func newTestApp(t *testing.T) (*fiber.App, *stubBriefer, *store.MemoryStore) {
	t.Helper()
	app := NewApp(observability.NewMetrics().Handler(), false)
	svc := &stubBriefer{}
	st := store.NewMemoryStore(10, 0)
	RegisterRoutes(app, svc, st)
	return app, svc, st
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	app, _, _ := newTestApp(t)
	resp, body := get(t, app, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)
	resp, _ := get(t, app, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWorldviewBuildsOnceThenServesSnapshot(t *testing.T) {
	app, svc, st := newTestApp(t)

	resp, body := get(t, app, "/api/v1/worldview?severe=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["meta"].(map[string]any)["severe_only"])

	resp, _ = get(t, app, "/api/v1/worldview?severe=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, svc.worldviews)

	_, err := st.GetLatest(store.KeySevere)
	assert.NoError(t, err)
}

func TestWorldviewHistory(t *testing.T) {
	app, _, st := newTestApp(t)
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	st.SaveSnapshot(store.KeyAll, weather.Worldview{GeneratedAt: at})

	resp, body := get(t, app, "/api/v1/worldview/history?from=2026-04-01T00:00:00Z&to=2026-04-02T00:00:00Z")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, store.KeyAll, body["variant"])
	assert.Len(t, body["worldviews"], 1)

	resp, _ = get(t, app, "/api/v1/worldview/history?severe=true&from=2026-04-01T00:00:00Z&to=2026-04-02T00:00:00Z")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWorldviewHistoryValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	cases := []string{
		"/api/v1/worldview/history",
		"/api/v1/worldview/history?from=yesterday&to=today",
		"/api/v1/worldview/history?from=1775044800&to=1775001600",
	}
	for _, target := range cases {
		resp, body := get(t, app, target)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Equal(t, true, body["error"], target)
	}
}

func TestForecastRoute(t *testing.T) {
	app, svc, _ := newTestApp(t)

	resp, body := get(t, app, "/api/v1/forecast?place=Denver&when=tomorrow&horizon=3d&focus=snow")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "forecast", body["command"])
	assert.Equal(t, briefing.ForecastParams{Place: "Denver", When: "tomorrow", Horizon: "3d", Focus: "snow"}, svc.forecast)
}

func TestForecastRouteValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, _ := get(t, app, "/api/v1/forecast")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, app, "/api/v1/forecast?place=Denver&horizon=9d")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRiskRoute(t *testing.T) {
	app, svc, _ := newTestApp(t)

	resp, _ := get(t, app, "/api/v1/risk?place=Tulsa&hazards=hail,%20wind,")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"hail", "wind"}, svc.hazards)

	resp, _ = get(t, app, "/api/v1/risk?hazards=hail")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAlertsRoute(t *testing.T) {
	app, svc, _ := newTestApp(t)

	resp, body := get(t, app, "/api/v1/alerts?place=Miami&ai=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, svc.ai)
	assert.Equal(t, "Miami", body["query"])
}
