package weather

import (
	"encoding/json"
	"strings"
	"time"
)

// Units selects the measurement system used for observations and the feature pack.
type Units string

const (
	UnitsImperial Units = "imperial"
	UnitsMetric   Units = "metric"
)

// UnitLabels names the unit of each quantity for a measurement system.
type UnitLabels struct {
	Temp   string `json:"temp"`
	Wind   string `json:"wind"`
	Precip string `json:"precip"`
}

// Labels returns the unit labels for u. Anything that is not metric is imperial.
func (u Units) Labels() UnitLabels {
	if u == UnitsMetric {
		return UnitLabels{Temp: "C", Wind: "mps", Precip: "mm"}
	}
	return UnitLabels{Temp: "F", Wind: "mph", Precip: "in"}
}

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PlaceContext is a resolved place. Tz is empty when the timezone is unknown.
type PlaceContext struct {
	Input    string  `json:"input"`
	Resolved string  `json:"resolved"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Tz       string  `json:"tz,omitempty"`
}

// Coordinate returns the place's position.
func (p PlaceContext) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// CurrentConditions is the quick observation block for a single point.
// Every field is nullable; upstreams routinely omit some of them.
type CurrentConditions struct {
	Temp         *float64 `json:"temp,omitempty"`
	FeelsLike    *float64 `json:"feels_like,omitempty"`
	Wind         *float64 `json:"wind,omitempty"`
	Gust         *float64 `json:"gust,omitempty"`
	PrecipLastHr *float64 `json:"precip_last_hr,omitempty"`
	VisKm        *float64 `json:"vis_km,omitempty"`
	CeilingM     *float64 `json:"ceiling_m,omitempty"`
}

// Profile is a compact convective profile for a single point.
type Profile struct {
	CapeJKG   *float64 `json:"cape_jkg,omitempty"`
	CinJKG    *float64 `json:"cin_jkg,omitempty"`
	Shear06Kt *float64 `json:"shear06_kt,omitempty"`
	PwatIn    *float64 `json:"pwat_in,omitempty"`
	LclM      *float64 `json:"lcl_m,omitempty"`
}

// Observation is one regional sample. Absent values stay nil and are skipped
// by the statistics.
type Observation struct {
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Temp       *float64 `json:"temp,omitempty"`
	FeelsLike  *float64 `json:"feels_like,omitempty"`
	Wind       *float64 `json:"wind,omitempty"`
	Gust       *float64 `json:"gust,omitempty"`
	PrecipProb *float64 `json:"precip_prob,omitempty"`
	CloudCover *float64 `json:"cloud_cover,omitempty"`
}

// MaxAlertAreas caps the number of areas kept on a single alert or alert summary.
const MaxAlertAreas = 5

// Alert is a single hazard bulletin.
type Alert struct {
	Event    string     `json:"event"`
	Severity string     `json:"severity,omitempty"`
	Areas    []string   `json:"areas,omitempty"`
	Expires  *time.Time `json:"-"`
}

// MarshalJSON renders the expiry as expires_iso.
func (a Alert) MarshalJSON() ([]byte, error) {
	type alias Alert
	out := struct {
		alias
		ExpiresISO string `json:"expires_iso,omitempty"`
	}{alias: alias(a)}
	if a.Expires != nil {
		out.ExpiresISO = a.Expires.UTC().Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// SplitAreas turns a "; " or ", " separated area description into a bounded list.
func SplitAreas(desc string) []string {
	return SplitAreasOn(desc, ";,")
}

// SplitAreasOn splits desc on any rune in seps, trimming and dropping empty
// parts, and keeps at most MaxAlertAreas entries.
func SplitAreasOn(desc, seps string) []string {
	fields := strings.FieldsFunc(desc, func(r rune) bool { return strings.ContainsRune(seps, r) })
	areas := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		areas = append(areas, f)
		if len(areas) == MaxAlertAreas {
			break
		}
	}
	return areas
}

// AlertSummary groups alerts that share an event name.
type AlertSummary struct {
	Event string   `json:"event"`
	Count int      `json:"count"`
	Areas []string `json:"areas"`
}

// RegionStats holds extremes across a region. A nil field means no sample
// reported that quantity.
type RegionStats struct {
	TMin    *float64 `json:"tmin"`
	TMax    *float64 `json:"tmax"`
	PopMax  *float64 `json:"pop_max"`
	WindMax *float64 `json:"wind_max"`
	GustMax *float64 `json:"gust_max"`
}

// RegionView is the worldview entry for one region.
type RegionView struct {
	Key     string         `json:"key"`
	Name    string         `json:"name"`
	Summary string         `json:"summary"`
	Stats   RegionStats    `json:"stats"`
	Alerts  []AlertSummary `json:"alerts"`
}

// FetchDiagnostic mirrors one coordinator diagnostics entry on the worldview.
type FetchDiagnostic struct {
	Name      string  `json:"name"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Succeeded bool    `json:"succeeded"`
	Detail    string  `json:"detail,omitempty"`
}

// WorldviewMeta describes how a worldview was produced. Samples is keyed by
// region key and rendered as samples_<key>.
type WorldviewMeta struct {
	Samples    map[string]int    `json:"-"`
	FetchMS    int64             `json:"fetch_ms"`
	Sources    []string          `json:"sources"`
	SevereOnly bool              `json:"severe_only"`
	Fetches    []FetchDiagnostic `json:"fetches,omitempty"`
}

// MarshalJSON flattens the sample counts next to the other meta fields.
func (m WorldviewMeta) MarshalJSON() ([]byte, error) {
	type alias WorldviewMeta
	base, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Samples) == 0 {
		return base, nil
	}
	var flat map[string]any
	if err := json.Unmarshal(base, &flat); err != nil {
		return nil, err
	}
	for key, n := range m.Samples {
		flat["samples_"+key] = n
	}
	return json.Marshal(flat)
}

// Worldview is the multi-region overview. Regions keep their configured order.
type Worldview struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Regions     []RegionView  `json:"regions"`
	Meta        WorldviewMeta `json:"meta"`
}

// Region returns the view for key.
func (w Worldview) Region(key string) (RegionView, bool) {
	for _, r := range w.Regions {
		if r.Key == key {
			return r, true
		}
	}
	return RegionView{}, false
}
