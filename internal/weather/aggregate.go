package weather

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxAlertEvents       = 5
	areasPerAlert        = 2
	popSummaryThreshold  = 30.0
	windSummaryThreshold = 10.0
)

// ComputeRegionStats returns min/max extremes over the values that are present.
// A statistic with no contributing sample stays nil.
func ComputeRegionStats(observations []Observation) RegionStats {
	var stats RegionStats
	for _, obs := range observations {
		stats.TMin = minOf(stats.TMin, obs.Temp)
		stats.TMax = maxOf(stats.TMax, obs.Temp)
		stats.PopMax = maxOf(stats.PopMax, obs.PrecipProb)
		stats.WindMax = maxOf(stats.WindMax, obs.Wind)
		stats.GustMax = maxOf(stats.GustMax, obs.Gust)
	}
	return stats
}

func minOf(cur, v *float64) *float64 {
	if v == nil {
		return cur
	}
	if cur == nil || *v < *cur {
		x := *v
		return &x
	}
	return cur
}

func maxOf(cur, v *float64) *float64 {
	if v == nil {
		return cur
	}
	if cur == nil || *v > *cur {
		x := *v
		return &x
	}
	return cur
}

// SummarizeAlerts groups alerts by event, counting occurrences and merging
// up to two areas from each alert. Groups are ordered by descending count,
// ties keep first-seen order, and at most five groups are returned.
func SummarizeAlerts(alerts []Alert) []AlertSummary {
	if len(alerts) == 0 {
		return []AlertSummary{}
	}

	type group struct {
		count int
		areas map[string]struct{}
	}
	var order []string
	groups := make(map[string]*group)

	for _, a := range alerts {
		g, ok := groups[a.Event]
		if !ok {
			g = &group{areas: make(map[string]struct{})}
			groups[a.Event] = g
			order = append(order, a.Event)
		}
		g.count++
		for i, area := range a.Areas {
			if i == areasPerAlert {
				break
			}
			g.areas[area] = struct{}{}
		}
	}

	out := make([]AlertSummary, 0, len(order))
	for _, event := range order {
		g := groups[event]
		areas := make([]string, 0, len(g.areas))
		for area := range g.areas {
			areas = append(areas, area)
		}
		sort.Strings(areas)
		if len(areas) > MaxAlertAreas {
			areas = areas[:MaxAlertAreas]
		}
		out = append(out, AlertSummary{Event: event, Count: g.count, Areas: areas})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > maxAlertEvents {
		out = out[:maxAlertEvents]
	}
	return out
}

// RegionSummary renders a one-line description of a region.
func RegionSummary(region string, observations []Observation, alerts []Alert) string {
	if len(observations) == 0 {
		return fmt.Sprintf("No data available for %s.", region)
	}

	stats := ComputeRegionStats(observations)
	var parts []string

	if stats.TMin != nil && stats.TMax != nil {
		parts = append(parts, fmt.Sprintf("Temps %d–%d°", int(*stats.TMin), int(*stats.TMax)))
	}
	if stats.PopMax != nil && *stats.PopMax > popSummaryThreshold {
		parts = append(parts, fmt.Sprintf("precip chance up to %d%%", int(*stats.PopMax)))
	}
	if stats.WindMax != nil && *stats.WindMax > windSummaryThreshold {
		parts = append(parts, fmt.Sprintf("winds to %d m/s", int(*stats.WindMax)))
	}
	if len(alerts) > 0 {
		parts = append(parts, fmt.Sprintf("%d active alerts", len(alerts)))
	}

	if len(parts) == 0 {
		return "Conditions variable"
	}
	return strings.Join(parts, "; ")
}

// BuildRegionView assembles the worldview entry for one region.
func BuildRegionView(key, name string, observations []Observation, alerts []Alert) RegionView {
	return RegionView{
		Key:     key,
		Name:    name,
		Summary: RegionSummary(name, observations, alerts),
		Stats:   ComputeRegionStats(observations),
		Alerts:  SummarizeAlerts(alerts),
	}
}

// Synthetic source markers reported by the offline worldview.
const (
	SyntheticSource       = "Offline synthetic data"
	SyntheticSevereSource = "Offline synthetic data (severe weather only)"
)

// SyntheticWorldview is the fixed worldview returned in offline mode.
func SyntheticWorldview(severeOnly bool) Worldview {
	usAlerts := []AlertSummary{
		{Event: "Heat Advisory", Count: 3, Areas: []string{"Texas", "Arizona", "New Mexico"}},
	}
	euAlerts := []AlertSummary{
		{Event: "Wind Warning", Count: 2, Areas: []string{"UK", "Netherlands"}},
	}
	source := SyntheticSource
	if severeOnly {
		usAlerts = []AlertSummary{
			{Event: "Tornado Warning", Count: 2, Areas: []string{"Oklahoma", "Kansas"}},
			{Event: "Flash Flood Warning", Count: 3, Areas: []string{"Texas", "Louisiana"}},
			{Event: "Severe Thunderstorm Warning", Count: 5, Areas: []string{"Nebraska", "Iowa"}},
		}
		euAlerts = []AlertSummary{
			{Event: "Flood Warning", Count: 1, Areas: []string{"Netherlands"}},
		}
		source = SyntheticSevereSource
	}

	return Worldview{
		Regions: []RegionView{
			{
				Key:     RegionUS,
				Name:    "US",
				Summary: "Varied conditions coast to coast; warm South, cooler North",
				Stats:   fixedStats(45, 85, 40, 15, 25),
				Alerts:  usAlerts,
			},
			{
				Key:     RegionEurope,
				Name:    "Europe",
				Summary: "Mixed weather across continent; wet northwest, dry south",
				Stats:   fixedStats(10, 25, 60, 20, 35),
				Alerts:  euAlerts,
			},
		},
		Meta: WorldviewMeta{
			Samples:    map[string]int{RegionUS: 0, RegionEurope: 0},
			Sources:    []string{source},
			SevereOnly: severeOnly,
		},
	}
}

func fixedStats(tmin, tmax, pop, wind, gust float64) RegionStats {
	return RegionStats{TMin: &tmin, TMax: &tmax, PopMax: &pop, WindMax: &wind, GustMax: &gust}
}
