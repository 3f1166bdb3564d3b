package providers

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/wx-briefing/internal/weather"
)

// Default Open-Meteo endpoints.
const (
	DefaultOpenMeteoGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultOpenMeteoForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

const (
	openMeteoName     = "Open-Meteo"
	openMeteoUpstream = "open-meteo"

	msToKnots = 1.94384
)

// OpenMeteoEndpoints overrides the upstream URLs; empty fields keep the defaults.
type OpenMeteoEndpoints struct {
	Geocoding string
	Forecast  string
}

// OpenMeteo resolves places and serves point observations, convective
// profiles and regional samples.
type OpenMeteo struct {
	client      *Client
	geocodeURL  string
	forecastURL string
}

var (
	_ weather.Geocoder         = (*OpenMeteo)(nil)
	_ weather.ConditionsSource = (*OpenMeteo)(nil)
	_ weather.ProfileSource    = (*OpenMeteo)(nil)
	_ weather.PointSampler     = (*OpenMeteo)(nil)
	_ weather.BatchSampler     = (*OpenMeteo)(nil)
)

func NewOpenMeteo(c *Client, ep OpenMeteoEndpoints) *OpenMeteo {
	if ep.Geocoding == "" {
		ep.Geocoding = DefaultOpenMeteoGeocodingURL
	}
	if ep.Forecast == "" {
		ep.Forecast = DefaultOpenMeteoForecastURL
	}
	return &OpenMeteo{client: c, geocodeURL: ep.Geocoding, forecastURL: ep.Forecast}
}

func (p *OpenMeteo) Name() string {
	return openMeteoName
}

// ParseLatLon accepts "lat,lon" with optional spaces.
func ParseLatLon(s string) (weather.Coordinate, bool) {
	left, right, ok := strings.Cut(s, ",")
	if !ok {
		return weather.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(left), 64)
	if err != nil {
		return weather.Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if err != nil {
		return weather.Coordinate{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return weather.Coordinate{}, false
	}
	return weather.Coordinate{Lat: lat, Lon: lon}, true
}

func coordParams(at weather.Coordinate) url.Values {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(at.Lat, 'f', 4, 64))
	v.Set("longitude", strconv.FormatFloat(at.Lon, 'f', 4, 64))
	return v
}

// Geocode resolves a place name, or a "lat,lon" pair, to a PlaceContext.
// Coordinates never fail; their timezone is looked up best-effort.
func (p *OpenMeteo) Geocode(ctx context.Context, query string) (weather.PlaceContext, error) {
	if p.client.Offline() {
		return weather.PlaceContext{}, ErrOffline
	}
	query = strings.TrimSpace(query)

	if at, ok := ParseLatLon(query); ok {
		place := weather.PlaceContext{Input: query, Resolved: query, Lat: at.Lat, Lon: at.Lon}
		if tz, err := p.timezone(ctx, at); err == nil {
			place.Tz = tz
		}
		return place, nil
	}

	params := url.Values{}
	params.Set("name", query)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var payload struct {
		Results []struct {
			Name      string   `json:"name"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
			Timezone  string   `json:"timezone"`
		} `json:"results"`
	}
	if err := p.client.getJSON(ctx, openMeteoUpstream, p.geocodeURL, params, &payload); err != nil {
		return weather.PlaceContext{}, err
	}
	if len(payload.Results) == 0 {
		return weather.PlaceContext{}, fmt.Errorf("geocode %q: %w", query, ErrNoResult)
	}
	r := payload.Results[0]
	if r.Latitude == nil || r.Longitude == nil {
		return weather.PlaceContext{}, fmt.Errorf("geocode %q: %w", query, ErrNoResult)
	}

	resolved := r.Name
	if resolved == "" {
		resolved = query
	}
	return weather.PlaceContext{
		Input:    query,
		Resolved: resolved,
		Lat:      *r.Latitude,
		Lon:      *r.Longitude,
		Tz:       r.Timezone,
	}, nil
}

func (p *OpenMeteo) timezone(ctx context.Context, at weather.Coordinate) (string, error) {
	params := coordParams(at)
	params.Set("timezone", "auto")
	params.Set("forecast_days", "1")

	var payload struct {
		Timezone string `json:"timezone"`
	}
	if err := p.client.getJSON(ctx, openMeteoUpstream, p.forecastURL, params, &payload); err != nil {
		return "", err
	}
	if payload.Timezone == "" || payload.Timezone == "GMT" {
		return "", ErrNoResult
	}
	return payload.Timezone, nil
}

func unitParams(v url.Values, units weather.Units) {
	if units == weather.UnitsMetric {
		v.Set("wind_speed_unit", "ms")
		return
	}
	v.Set("temperature_unit", "fahrenheit")
	v.Set("wind_speed_unit", "mph")
	v.Set("precipitation_unit", "inch")
}

// Current returns the quick observation block in the requested units.
func (p *OpenMeteo) Current(ctx context.Context, at weather.Coordinate, units weather.Units) (weather.CurrentConditions, error) {
	params := coordParams(at)
	params.Set("current", "temperature_2m,apparent_temperature,wind_speed_10m,wind_gusts_10m,precipitation,visibility,cloud_base")
	params.Set("timezone", "UTC")
	unitParams(params, units)

	var payload struct {
		Current struct {
			Temperature   *float64 `json:"temperature_2m"`
			Apparent      *float64 `json:"apparent_temperature"`
			WindSpeed     *float64 `json:"wind_speed_10m"`
			WindGusts     *float64 `json:"wind_gusts_10m"`
			Precipitation *float64 `json:"precipitation"`
			Visibility    *float64 `json:"visibility"`
			CloudBase     *float64 `json:"cloud_base"`
		} `json:"current"`
	}
	if err := p.client.getJSON(ctx, openMeteoUpstream, p.forecastURL, params, &payload); err != nil {
		return weather.CurrentConditions{}, err
	}

	c := payload.Current
	out := weather.CurrentConditions{
		Temp:         c.Temperature,
		FeelsLike:    c.Apparent,
		Wind:         c.WindSpeed,
		Gust:         c.WindGusts,
		PrecipLastHr: c.Precipitation,
		VisKm:        visibilityKm(c.Visibility, units),
		CeilingM:     c.CloudBase,
	}
	if out == (weather.CurrentConditions{}) {
		return out, fmt.Errorf("current conditions: %w", ErrNoResult)
	}
	return out, nil
}

// visibilityKm converts Open-Meteo visibility, reported in feet for imperial
// requests and metres otherwise.
func visibilityKm(v *float64, units weather.Units) *float64 {
	if v == nil {
		return nil
	}
	km := *v / 1000
	if units != weather.UnitsMetric {
		km = *v * 0.0003048
	}
	km = math.Round(km*10) / 10
	return &km
}

// Profile returns the first hourly convective values for the point.
func (p *OpenMeteo) Profile(ctx context.Context, at weather.Coordinate) (weather.Profile, error) {
	params := coordParams(at)
	params.Set("hourly", "convective_available_potential_energy,convective_inhibition,wind_speed_700hPa,wind_speed_500hPa,precipitable_water,cloud_base")
	params.Set("forecast_days", "1")
	params.Set("timezone", "UTC")
	params.Set("wind_speed_unit", "ms")
	params.Set("precipitation_unit", "inch")

	var payload struct {
		Hourly struct {
			Cape      []*float64 `json:"convective_available_potential_energy"`
			Cin       []*float64 `json:"convective_inhibition"`
			Wind700   []*float64 `json:"wind_speed_700hPa"`
			Wind500   []*float64 `json:"wind_speed_500hPa"`
			PWAT      []*float64 `json:"precipitable_water"`
			CloudBase []*float64 `json:"cloud_base"`
		} `json:"hourly"`
	}
	if err := p.client.getJSON(ctx, openMeteoUpstream, p.forecastURL, params, &payload); err != nil {
		return weather.Profile{}, err
	}

	h := payload.Hourly
	out := weather.Profile{
		CapeJKG: rounded(first(h.Cape)),
		CinJKG:  rounded(first(h.Cin)),
		PwatIn:  first(h.PWAT),
		LclM:    rounded(first(h.CloudBase)),
	}
	if w7, w5 := first(h.Wind700), first(h.Wind500); w7 != nil && w5 != nil {
		shear := math.Round(math.Abs(*w5-*w7) * msToKnots)
		out.Shear06Kt = &shear
	}
	if out == (weather.Profile{}) {
		return out, fmt.Errorf("profile: %w", ErrNoResult)
	}
	return out, nil
}

func rounded(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v)
	return &r
}

type samplePayload struct {
	Current struct {
		Temperature *float64 `json:"temperature_2m"`
		Apparent    *float64 `json:"apparent_temperature"`
		WindSpeed   *float64 `json:"wind_speed_10m"`
		WindGusts   *float64 `json:"wind_gusts_10m"`
		CloudCover  *float64 `json:"cloud_cover"`
	} `json:"current"`
	Hourly struct {
		PrecipProb []*float64 `json:"precipitation_probability"`
	} `json:"hourly"`
}

func (sp samplePayload) observation(at weather.Coordinate) weather.Observation {
	c := sp.Current
	return weather.Observation{
		Lat:        at.Lat,
		Lon:        at.Lon,
		Temp:       c.Temperature,
		FeelsLike:  c.Apparent,
		Wind:       c.WindSpeed,
		Gust:       c.WindGusts,
		PrecipProb: seriesMax(sp.Hourly.PrecipProb),
		CloudCover: c.CloudCover,
	}
}

// Wind is always m/s so the regional thresholds hold.
func sampleParams(units weather.Units) url.Values {
	v := url.Values{}
	v.Set("current", "temperature_2m,apparent_temperature,wind_speed_10m,wind_gusts_10m,cloud_cover")
	v.Set("hourly", "precipitation_probability")
	v.Set("forecast_days", "1")
	v.Set("timezone", "UTC")
	v.Set("wind_speed_unit", "ms")
	if units != weather.UnitsMetric {
		v.Set("temperature_unit", "fahrenheit")
	}
	return v
}

// Sample returns one worldview observation. Precipitation chance is the
// day's hourly max.
func (p *OpenMeteo) Sample(ctx context.Context, at weather.Coordinate, units weather.Units) (weather.Observation, error) {
	params := sampleParams(units)
	for k, v := range coordParams(at) {
		params[k] = v
	}

	var payload samplePayload
	if err := p.client.getJSON(ctx, openMeteoUpstream, p.forecastURL, params, &payload); err != nil {
		return weather.Observation{}, err
	}
	return payload.observation(at), nil
}

// SampleBatch reads every point in one multi-location request. Open-Meteo
// answers a list of coordinates with an array in request order.
func (p *OpenMeteo) SampleBatch(ctx context.Context, points []weather.Coordinate, units weather.Units) ([]weather.Observation, error) {
	switch len(points) {
	case 0:
		return nil, nil
	case 1:
		obs, err := p.Sample(ctx, points[0], units)
		if err != nil {
			return nil, err
		}
		return []weather.Observation{obs}, nil
	}

	lats := make([]string, len(points))
	lons := make([]string, len(points))
	for i, at := range points {
		lats[i] = strconv.FormatFloat(at.Lat, 'f', 4, 64)
		lons[i] = strconv.FormatFloat(at.Lon, 'f', 4, 64)
	}
	params := sampleParams(units)
	params.Set("latitude", strings.Join(lats, ","))
	params.Set("longitude", strings.Join(lons, ","))

	var payload []samplePayload
	if err := p.client.getJSON(ctx, openMeteoUpstream, p.forecastURL, params, &payload); err != nil {
		return nil, err
	}
	if len(payload) != len(points) {
		return nil, fmt.Errorf("%s: batch returned %d locations for %d points: %w",
			openMeteoUpstream, len(payload), len(points), ErrNoResult)
	}

	out := make([]weather.Observation, len(points))
	for i, at := range points {
		out[i] = payload[i].observation(at)
	}
	return out, nil
}

func seriesMax(values []*float64) *float64 {
	var out *float64
	for _, v := range values {
		if v == nil {
			continue
		}
		if out == nil || *v > *out {
			x := *v
			out = &x
		}
	}
	return out
}
