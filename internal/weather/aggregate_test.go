package weather

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestComputeRegionStats(t *testing.T) {
	obs := []Observation{
		{Lat: 40.7, Lon: -74.0, Temp: f(20), Wind: f(5), Gust: f(10), PrecipProb: f(30)},
		{Lat: 34.0, Lon: -118.2, Temp: f(25), Wind: f(7), Gust: f(12), PrecipProb: f(10)},
		{Lat: 42.3, Lon: -71.1, Temp: f(18), Wind: f(3), Gust: f(8), PrecipProb: f(50)},
	}

	stats := ComputeRegionStats(obs)

	assert.Equal(t, 18.0, *stats.TMin)
	assert.Equal(t, 25.0, *stats.TMax)
	assert.Equal(t, 50.0, *stats.PopMax)
	assert.Equal(t, 7.0, *stats.WindMax)
	assert.Equal(t, 12.0, *stats.GustMax)
}

func TestComputeRegionStatsSkipsMissingValues(t *testing.T) {
	obs := []Observation{
		{Temp: f(12)},
		{Wind: f(4)},
		{},
	}

	stats := ComputeRegionStats(obs)

	assert.Equal(t, 12.0, *stats.TMin)
	assert.Equal(t, 12.0, *stats.TMax)
	assert.Equal(t, 4.0, *stats.WindMax)
	assert.Nil(t, stats.PopMax)
	assert.Nil(t, stats.GustMax)
}

func TestComputeRegionStatsEmpty(t *testing.T) {
	stats := ComputeRegionStats(nil)
	assert.Nil(t, stats.TMin)
	assert.Nil(t, stats.TMax)
	assert.Nil(t, stats.PopMax)
	assert.Nil(t, stats.WindMax)
	assert.Nil(t, stats.GustMax)

	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tmin":null,"tmax":null,"pop_max":null,"wind_max":null,"gust_max":null}`, string(raw))
}

func TestRegionSummary(t *testing.T) {
	obs := []Observation{
		{Temp: f(20), Wind: f(5), Gust: f(10), PrecipProb: f(35)},
		{Temp: f(25), Wind: f(7), Gust: f(12), PrecipProb: f(10)},
	}
	alerts := []Alert{{Event: "Heat Advisory", Severity: "Moderate", Areas: []string{"Texas"}}}

	summary := RegionSummary("US", obs, alerts)

	assert.Equal(t, "Temps 20–25°; precip chance up to 35%; 1 active alerts", summary)
	assert.NotContains(t, summary, "winds")
}

func TestRegionSummaryThresholds(t *testing.T) {
	// Exactly at the thresholds is not enough to be mentioned.
	obs := []Observation{{PrecipProb: f(30), Wind: f(10)}}
	assert.Equal(t, "Conditions variable", RegionSummary("Europe", obs, nil))

	obs = []Observation{{PrecipProb: f(30.5), Wind: f(12.9)}}
	assert.Equal(t, "precip chance up to 30%; winds to 12 m/s", RegionSummary("Europe", obs, nil))
}

func TestRegionSummaryNoData(t *testing.T) {
	assert.Equal(t, "No data available for Europe.", RegionSummary("Europe", nil, nil))
}

func TestSummarizeAlerts(t *testing.T) {
	alerts := []Alert{
		{Event: "Tornado Warning", Severity: "Extreme", Areas: []string{"Oklahoma", "Kansas", "Texas"}},
		{Event: "Tornado Warning", Severity: "Extreme", Areas: []string{"Kansas", "Nebraska"}},
		{Event: "Flood Watch", Severity: "Moderate", Areas: []string{"Louisiana"}},
	}

	summary := SummarizeAlerts(alerts)

	require.Len(t, summary, 2)
	assert.Equal(t, "Tornado Warning", summary[0].Event)
	assert.Equal(t, 2, summary[0].Count)
	assert.Equal(t, []string{"Kansas", "Nebraska", "Oklahoma"}, summary[0].Areas)
	assert.Equal(t, "Flood Watch", summary[1].Event)
	assert.Equal(t, 1, summary[1].Count)
}

func TestSummarizeAlertsBounds(t *testing.T) {
	var alerts []Alert
	for i := 0; i < 7; i++ {
		for j := 0; j <= i; j++ {
			alerts = append(alerts, Alert{
				Event: fmt.Sprintf("Event %d", i),
				Areas: []string{fmt.Sprintf("Area %d-%d", i, j), fmt.Sprintf("Zone %d-%d", i, j)},
			})
		}
	}

	summary := SummarizeAlerts(alerts)

	require.Len(t, summary, 5)
	for i := 1; i < len(summary); i++ {
		assert.GreaterOrEqual(t, summary[i-1].Count, summary[i].Count)
	}
	for _, s := range summary {
		assert.LessOrEqual(t, len(s.Areas), MaxAlertAreas)
	}
	assert.Equal(t, "Event 6", summary[0].Event)
	assert.Equal(t, 7, summary[0].Count)
}

func TestSummarizeAlertsEmpty(t *testing.T) {
	assert.Empty(t, SummarizeAlerts(nil))
}

func TestSyntheticWorldview(t *testing.T) {
	wv := SyntheticWorldview(false)

	require.Len(t, wv.Regions, 2)
	us, ok := wv.Region(RegionUS)
	require.True(t, ok)
	assert.Equal(t, "US", us.Name)
	assert.Contains(t, strings.ToLower(us.Summary), "coast")
	assert.Equal(t, 45.0, *us.Stats.TMin)
	assert.Equal(t, 85.0, *us.Stats.TMax)
	assert.NotEmpty(t, us.Alerts)

	eu, ok := wv.Region(RegionEurope)
	require.True(t, ok)
	assert.Equal(t, "Europe", eu.Name)
	assert.Equal(t, 10.0, *eu.Stats.TMin)
	assert.Equal(t, 25.0, *eu.Stats.TMax)

	assert.Equal(t, 0, wv.Meta.Samples[RegionUS])
	assert.Equal(t, 0, wv.Meta.Samples[RegionEurope])
	assert.Equal(t, []string{SyntheticSource}, wv.Meta.Sources)

	raw, err := json.Marshal(wv.Meta)
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.EqualValues(t, 0, meta["samples_us"])
	assert.EqualValues(t, 0, meta["samples_eu"])
	assert.Equal(t, false, meta["severe_only"])
}

func TestSyntheticWorldviewSevereOnly(t *testing.T) {
	wv := SyntheticWorldview(true)

	assert.True(t, wv.Meta.SevereOnly)
	assert.Equal(t, []string{SyntheticSevereSource}, wv.Meta.Sources)

	for _, region := range wv.Regions {
		for _, a := range region.Alerts {
			assert.True(t, IsSevere(a.Event), a.Event)
		}
	}
	us, _ := wv.Region(RegionUS)
	events := make([]string, 0, len(us.Alerts))
	for _, a := range us.Alerts {
		events = append(events, a.Event)
	}
	assert.Contains(t, events, "Tornado Warning")
	assert.Contains(t, events, "Flash Flood Warning")
}

func TestSplitAreas(t *testing.T) {
	assert.Equal(t, []string{"Travis", "Hays", "Williamson"}, SplitAreas("Travis; Hays; Williamson"))
	assert.Len(t, SplitAreas("a, b, c, d, e, f, g"), MaxAlertAreas)
	assert.Empty(t, SplitAreas(" ; "))
}

func TestAlertJSON(t *testing.T) {
	raw, err := json.Marshal(Alert{Event: "Flood Watch", Severity: "Moderate"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"Flood Watch","severity":"Moderate"}`, string(raw))
}
