package featurepack

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wx-briefing/internal/weather"
)

func TestBuilderUnitsAlwaysPresent(t *testing.T) {
	p := NewBuilder(weather.UnitsImperial, false).Build()
	assert.Equal(t, []string{SectionUnits}, p.Keys())

	v, _ := p.Get(SectionUnits)
	assert.Equal(t, weather.UnitLabels{Temp: "F", Wind: "mph", Precip: "in"}, v)

	v, _ = NewBuilder(weather.UnitsMetric, false).Build().Get(SectionUnits)
	assert.Equal(t, weather.UnitLabels{Temp: "C", Wind: "mps", Precip: "mm"}, v)
}

func TestBuilderTrustToolsGate(t *testing.T) {
	obs := weather.CurrentConditions{Temp: temp(60)}
	alerts := []weather.Alert{{Event: "Flood Watch"}}

	gated := NewBuilder(weather.UnitsImperial, false).
		Quick(SectionObsQuick, obs).
		Quick(SectionAlertsQuick, alerts).
		Build()
	assert.False(t, gated.Has(SectionObsQuick))
	assert.False(t, gated.Has(SectionAlertsQuick))

	open := NewBuilder(weather.UnitsImperial, true).
		Quick(SectionObsQuick, obs).
		Quick(SectionProfile, weather.Profile{}).
		Quick(SectionAlertsQuick, alerts).
		Build()
	assert.True(t, open.Has(SectionObsQuick))
	assert.False(t, open.Has(SectionProfile), "empty profile must be dropped")
	assert.True(t, open.Has(SectionAlertsQuick))

	direct := NewBuilder(weather.UnitsImperial, false).Add(SectionAlertsQuick, alerts).Build()
	assert.True(t, direct.Has(SectionAlertsQuick))
}

func TestBuilderOrderAndUserContext(t *testing.T) {
	place := &weather.PlaceContext{Input: "Denver", Resolved: "Denver, Colorado", Lat: 39.74, Lon: -104.99, Tz: "America/Denver"}
	w := BuildWindow(time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC), "", "12h", place.Tz)

	p := NewBuilder(weather.UnitsImperial, true).
		UseCase("forecast", "focus:snow", "", "verbose").
		Place(place).
		Window(&w).
		Build()

	assert.Equal(t, []string{SectionUnits, SectionPlace, SectionWindow, SectionUserContext}, p.Keys())

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, map[string]any{
		"use_case":    "forecast",
		"constraints": []any{"focus:snow", "verbose"},
	}, doc[SectionUserContext])
}

func TestBuilderNilPlaceAndWindow(t *testing.T) {
	p := NewBuilder(weather.UnitsImperial, true).Place(nil).Window(nil).UseCase("question").Build()
	assert.Equal(t, []string{SectionUnits, SectionUserContext}, p.Keys())
}
