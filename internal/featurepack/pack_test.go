package featurepack

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wx-briefing/internal/weather"
)

func temp(v float64) *float64 { return &v }

func TestPackSkipsEmptyValues(t *testing.T) {
	p := New()

	assert.False(t, p.Set("nil", nil))
	assert.False(t, p.Set("slice", []weather.Alert{}))
	assert.False(t, p.Set("map", map[string]any{}))
	assert.False(t, p.Set("string", ""))
	assert.False(t, p.Set("struct", weather.CurrentConditions{}))
	assert.True(t, p.Set("obs", weather.CurrentConditions{Temp: temp(71)}))

	assert.Equal(t, []string{"obs"}, p.Keys())
}

func TestPackEmptyValueRemovesExisting(t *testing.T) {
	p := New()
	p.Set("a", "x")
	p.Set("b", "y")
	p.Set("a", nil)

	assert.Equal(t, []string{"b"}, p.Keys())
}

func TestPackPreservesOrderThroughJSON(t *testing.T) {
	p := New()
	p.Set("units", weather.UnitsMetric.Labels())
	p.Set("window", map[string]string{"horizon": "24h"})
	p.Set("alerts_quick", []map[string]string{{"event": "Flood Watch"}})
	p.Set("user_context", UserContext{UseCase: "risk"})

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var back Pack
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, p.Keys(), back.Keys())

	units, ok := back.Get("units")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"temp": "C", "wind": "mps", "precip": "mm"}, units)
}

func TestPackUnmarshalRejectsNonObject(t *testing.T) {
	var p Pack
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &p))
}

func TestUsedFields(t *testing.T) {
	p := New()
	p.Set(SectionUnits, weather.UnitsImperial.Labels())
	p.Set(SectionPlace, weather.PlaceContext{Input: "Austin", Resolved: "Austin, Texas", Lat: 30.27, Lon: -97.74})
	p.Set(SectionObsQuick, weather.CurrentConditions{Temp: temp(88), Wind: temp(6)})
	p.Set(SectionAlertsQuick, []weather.Alert{{Event: "Heat Advisory"}})

	fields := UsedFields(p)

	assert.True(t, sort.StringsAreSorted(fields))
	assert.Equal(t, []string{
		"alerts_quick",
		"obs_quick.temp",
		"obs_quick.wind",
		"place.input",
		"place.lat",
		"place.lon",
		"place.resolved",
		"units",
	}, fields)
}

func TestUsedFieldsSubsetOfPack(t *testing.T) {
	b := NewBuilder(weather.UnitsMetric, true)
	w := BuildWindow(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), "", "6h", "Europe/Paris")
	b.Window(&w).UseCase("forecast", "focus:wind", "verbose")
	p := b.Build()

	allowed := map[string]bool{}
	for _, k := range p.Keys() {
		allowed[k] = true
		if v, ok := p.Get(k); ok {
			if inner, isObj := objectFields(v); isObj {
				for _, sub := range inner {
					allowed[k+"."+sub] = true
				}
			}
		}
	}
	for _, f := range UsedFields(p) {
		assert.True(t, allowed[f], f)
	}
}

func TestUsedFieldsNil(t *testing.T) {
	assert.Empty(t, UsedFields(nil))
}
