package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wx-briefing/internal/ratelimit"
	"github.com/i474232898/wx-briefing/internal/weather"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, string, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), ratelimit.NewRegistry(600, 50), false, nil), srv.URL, &calls
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestParseLatLon(t *testing.T) {
	at, ok := ParseLatLon(" 30.27 , -97.74 ")
	require.True(t, ok)
	assert.Equal(t, weather.Coordinate{Lat: 30.27, Lon: -97.74}, at)

	for _, in := range []string{"Austin", "Austin, TX", "91,0", "1,2,3"} {
		_, ok := ParseLatLon(in)
		assert.False(t, ok, in)
	}
}

func TestGeocodeByName(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Austin", r.URL.Query().Get("name"))
		assert.Equal(t, "1", r.URL.Query().Get("count"))
		writeJSON(w, `{"results":[{"name":"Austin","latitude":30.27,"longitude":-97.74,"timezone":"America/Chicago"}]}`)
	})
	om := NewOpenMeteo(c, OpenMeteoEndpoints{Geocoding: base + "/search", Forecast: base + "/forecast"})

	place, err := om.Geocode(t.Context(), "Austin")
	require.NoError(t, err)
	assert.Equal(t, weather.PlaceContext{Input: "Austin", Resolved: "Austin", Lat: 30.27, Lon: -97.74, Tz: "America/Chicago"}, place)
}

func TestGeocodeNoResults(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"generationtime_ms":0.2}`)
	})
	om := NewOpenMeteo(c, OpenMeteoEndpoints{Geocoding: base, Forecast: base})

	_, err := om.Geocode(t.Context(), "Nowhereville")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestGeocodeLatLonLooksUpTimezone(t *testing.T) {
	c, base, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "auto", r.URL.Query().Get("timezone"))
		writeJSON(w, `{"timezone":"Europe/Paris"}`)
	})
	om := NewOpenMeteo(c, OpenMeteoEndpoints{Geocoding: base + "/search", Forecast: base + "/forecast"})

	place, err := om.Geocode(t.Context(), "48.86,2.35")
	require.NoError(t, err)
	assert.Equal(t, "48.86,2.35", place.Resolved)
	assert.Equal(t, 48.86, place.Lat)
	assert.Equal(t, "Europe/Paris", place.Tz)
	assert.EqualValues(t, 1, *calls)
}

func TestGeocodeLatLonSurvivesTimezoneFailure(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	om := NewOpenMeteo(c, OpenMeteoEndpoints{Geocoding: base, Forecast: base})

	place, err := om.Geocode(t.Context(), "10,20")
	require.NoError(t, err)
	assert.Empty(t, place.Tz)
}

func TestCurrentImperialUnits(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "fahrenheit", q.Get("temperature_unit"))
		assert.Equal(t, "mph", q.Get("wind_speed_unit"))
		assert.Equal(t, "inch", q.Get("precipitation_unit"))
		writeJSON(w, `{"current":{"temperature_2m":88.1,"apparent_temperature":93.0,"wind_speed_10m":12,"wind_gusts_10m":null,"precipitation":0,"visibility":32808}}`)
	})
	om := NewOpenMeteo(c, OpenMeteoEndpoints{Forecast: base})

	cur, err := om.Current(t.Context(), weather.Coordinate{Lat: 30, Lon: -97}, weather.UnitsImperial)
	require.NoError(t, err)
	require.NotNil(t, cur.Temp)
	assert.Equal(t, 88.1, *cur.Temp)
	assert.Nil(t, cur.Gust)
	require.NotNil(t, cur.VisKm)
	assert.InDelta(t, 10.0, *cur.VisKm, 0.05)
}

func TestCurrentMetricAndEmpty(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ms", r.URL.Query().Get("wind_speed_unit"))
		assert.Empty(t, r.URL.Query().Get("temperature_unit"))
		writeJSON(w, `{"current":{}}`)
	})
	om := NewOpenMeteo(c, OpenMeteoEndpoints{Forecast: base})

	_, err := om.Current(t.Context(), weather.Coordinate{}, weather.UnitsMetric)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestProfileComputesShear(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"hourly":{"convective_available_potential_energy":[2450.6,3000],"convective_inhibition":[-25.2],`+
			`"wind_speed_700hPa":[10],"wind_speed_500hPa":[25],"precipitable_water":[1.6],"cloud_base":[812.4]}}`)
	})
	om := NewOpenMeteo(c, OpenMeteoEndpoints{Forecast: base})

	p, err := om.Profile(t.Context(), weather.Coordinate{Lat: 35, Lon: -97})
	require.NoError(t, err)
	assert.Equal(t, 2451.0, *p.CapeJKG)
	assert.Equal(t, -25.0, *p.CinJKG)
	assert.Equal(t, 29.0, *p.Shear06Kt)
	assert.Equal(t, 1.6, *p.PwatIn)
	assert.Equal(t, 812.0, *p.LclM)
}

func TestSampleTakesMaxPrecipProbability(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"current":{"temperature_2m":20,"wind_speed_10m":4,"cloud_cover":75},`+
			`"hourly":{"precipitation_probability":[10,null,65,40]}}`)
	})
	om := NewOpenMeteo(c, OpenMeteoEndpoints{Forecast: base})

	obs, err := om.Sample(t.Context(), weather.Coordinate{Lat: 1, Lon: 2}, weather.UnitsMetric)
	require.NoError(t, err)
	assert.Equal(t, 1.0, obs.Lat)
	assert.Equal(t, 65.0, *obs.PrecipProb)
	assert.Equal(t, 75.0, *obs.CloudCover)
	assert.Nil(t, obs.Gust)
	assert.Equal(t, "Open-Meteo", om.Name())
}

const nwsBody = `{"features":[
 {"properties":{"event":"Tornado Warning","severity":"Extreme","areaDesc":"Cleveland, OK; McClain, OK","ends":"2025-05-01T02:00:00-05:00"}},
 {"properties":{"event":"Heat Advisory","severity":"Moderate","areaDesc":"Travis, TX","ends":null,"expires":"2025-05-01T09:00:00Z"}},
 {"properties":{"event":"Flood Watch","severity":"Severe","areaDesc":"Harris, TX"}},
 {"properties":{"event":"Wind Advisory","severity":"Minor","areaDesc":"A"}},
 {"properties":{"event":"Frost Advisory","severity":"Minor","areaDesc":"B"}},
 {"properties":{"event":"Special Weather Statement","severity":"Minor","areaDesc":"C"}}
]}`

func TestNWSPointAlertsCapsAtFive(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "30.267,-97.743", r.URL.Query().Get("point"))
		writeJSON(w, nwsBody)
	})
	nws := NewNWS(c, base)

	alerts, err := nws.PointAlerts(t.Context(), weather.Coordinate{Lat: 30.2672, Lon: -97.7431})
	require.NoError(t, err)
	require.Len(t, alerts, 5)
	assert.Equal(t, "Tornado Warning", alerts[0].Event)
	assert.Equal(t, []string{"Cleveland, OK", "McClain, OK"}, alerts[0].Areas)
	require.NotNil(t, alerts[0].Expires)
	assert.Equal(t, "2025-05-01T07:00:00Z", alerts[0].Expires.UTC().Format("2006-01-02T15:04:05Z07:00"))
	require.NotNil(t, alerts[1].Expires)
	assert.Nil(t, alerts[2].Expires)
}

func TestNWSRegionAlertsApplyPredicate(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "actual", r.URL.Query().Get("status"))
		writeJSON(w, nwsBody)
	})
	nws := NewNWS(c, base)

	all, err := nws.RegionAlerts(t.Context(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	severe, err := nws.RegionAlerts(t.Context(), weather.IsSevere)
	require.NoError(t, err)
	require.Len(t, severe, 2)
	assert.Equal(t, "Tornado Warning", severe[0].Event)
	assert.Equal(t, "Flood Watch", severe[1].Event)
}

const capAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:cap="urn:oasis:names:tc:emergency:cap:1.2">
  <title>MeteoAlarm Netherlands</title>
  <entry>
    <title>Orange Wind Warning issued for Netherlands - Noord-Holland</title>
    <cap:event>Severe wind warning</cap:event>
    <cap:severity>Severe</cap:severity>
    <cap:areaDesc>Noord-Holland</cap:areaDesc>
    <cap:expires>2025-01-15T18:00:00+01:00</cap:expires>
  </entry>
  <entry>
    <title>Flood Warning - Zeeland</title>
  </entry>
</feed>`

const plainRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>x</title>
  <item><title>Wind Warning - Netherlands</title><description>Severe wind warning for coastal areas</description></item>
</channel></rss>`

func TestMeteoAlarmParsesCapAndTitles(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rss" {
			_, _ = w.Write([]byte(plainRSS))
			return
		}
		_, _ = w.Write([]byte(capAtom))
	})
	ma := NewMeteoAlarm(c, []string{base + "/atom", base + "/rss"})

	alerts, err := ma.RegionAlerts(t.Context(), nil)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	assert.Equal(t, "Severe wind warning", alerts[0].Event)
	assert.Equal(t, "Severe", alerts[0].Severity)
	assert.Equal(t, []string{"Noord-Holland"}, alerts[0].Areas)
	require.NotNil(t, alerts[0].Expires)

	assert.Equal(t, "Flood Warning", alerts[1].Event)
	assert.Equal(t, []string{"Zeeland"}, alerts[1].Areas)

	assert.Equal(t, weather.Alert{Event: "Wind Warning", Areas: []string{"Netherlands"}}, alerts[2])

	severe, err := ma.RegionAlerts(t.Context(), weather.IsSevere)
	require.NoError(t, err)
	require.Len(t, severe, 1)
	assert.Equal(t, "Flood Warning", severe[0].Event)
}

func TestMeteoAlarmToleratesOneBrokenFeed(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(plainRSS))
	})

	alerts, err := NewMeteoAlarm(c, []string{base + "/broken", base + "/ok"}).RegionAlerts(t.Context(), nil)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	_, err = NewMeteoAlarm(c, []string{base + "/broken"}).RegionAlerts(t.Context(), nil)
	assert.ErrorIs(t, err, errUnexpectedStatus)
}

func TestMeteoAlarmSlowFeedDoesNotDropOthers(t *testing.T) {
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(plainRSS))
	})
	ma := NewMeteoAlarm(c, []string{base + "/slow", base + "/a", base + "/b"})

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()

	alerts, err := ma.RegionAlerts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestOfflineClientMakesNoRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	c := NewClient(srv.Client(), nil, true, nil)

	om := NewOpenMeteo(c, OpenMeteoEndpoints{Geocoding: srv.URL, Forecast: srv.URL})
	_, err := om.Geocode(t.Context(), "Austin")
	assert.ErrorIs(t, err, ErrOffline)
	_, err = om.Sample(t.Context(), weather.Coordinate{}, weather.UnitsMetric)
	assert.ErrorIs(t, err, ErrOffline)
	_, err = NewNWS(c, srv.URL).PointAlerts(t.Context(), weather.Coordinate{})
	assert.True(t, errors.Is(err, ErrOffline))
	_, err = NewMeteoAlarm(c, []string{srv.URL}).RegionAlerts(t.Context(), nil)
	assert.ErrorIs(t, err, ErrOffline)

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestResponseSizeCap(t *testing.T) {
	big := make([]byte, maxBodyBytes+10)
	for i := range big {
		big[i] = ' '
	}
	c, base, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(big)
	})
	_, err := c.get(t.Context(), "big", base, nil, "")
	assert.ErrorContains(t, err, "exceeds")
}
