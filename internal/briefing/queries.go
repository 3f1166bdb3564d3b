package briefing

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/i474232898/wx-briefing/internal/featurepack"
	"github.com/i474232898/wx-briefing/internal/forecaster"
	"github.com/i474232898/wx-briefing/internal/weather"
)

// ProviderAlertsManual tags responses built straight from the alert feed.
const ProviderAlertsManual = "alerts-manual"

func verboseTag(verbose bool) string {
	if verbose {
		return "verbose"
	}
	return ""
}

func joinComma(items []string) string {
	return strings.Join(items, ",")
}

func forecastQuery(p ForecastParams) string {
	parts := []string{"Forecast request for " + p.Place}
	if p.When != "" {
		parts = append(parts, "window hint: "+p.When)
	}
	horizon := p.Horizon
	if horizon == "" {
		horizon = fmt.Sprintf("%dh", featurepack.DefaultHorizon)
	}
	parts = append(parts, "horizon: "+horizon)
	if p.Focus != "" {
		parts = append(parts, "focus: "+p.Focus)
	}
	return strings.Join(parts, "; ")
}

// riskQuery lists hazards sorted and deduplicated.
func riskQuery(place string, hazards []string) string {
	if len(hazards) == 0 {
		return "Risk assessment for " + place
	}
	sorted := slices.Clone(hazards)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return fmt.Sprintf("Risk assessment for %s: hazards=%s", place, joinComma(sorted))
}

func manualAlertsResponse(place string, alerts []weather.Alert) *forecaster.Response {
	var sections map[string]any
	if len(alerts) == 0 {
		sections = map[string]any{
			"summary":     []string{fmt.Sprintf("No active alerts found for %s at this time.", place)},
			"timeline":    []string{"No urgent alerts."},
			"risk_cards":  []map[string]any{},
			"confidence":  "Based on NOAA live feed availability.",
			"actions":     []string{"Monitor official channels for updates."},
			"assumptions": []string{"No AI triage performed."},
		}
	} else {
		timeline := make([]string, 0, len(alerts))
		cards := make([]map[string]any, 0, len(alerts))
		for _, a := range alerts {
			event := a.Event
			if event == "" {
				event = "Alert"
			}
			expires := "unknown"
			if a.Expires != nil {
				expires = a.Expires.UTC().Format(time.RFC3339)
			}
			level := a.Severity
			if level == "" {
				level = "Unknown"
			}
			timeline = append(timeline, fmt.Sprintf("%s expires %s", event, expires))
			cards = append(cards, map[string]any{
				"hazard":     event,
				"level":      level,
				"drivers":    []string{"Official alert headline"},
				"confidence": "Official source",
			})
		}
		sections = map[string]any{
			"summary":     []string{fmt.Sprintf("%d active alerts near %s.", len(alerts), place)},
			"timeline":    timeline,
			"risk_cards":  cards,
			"confidence":  "Reporting official alerts without AI triage.",
			"actions":     []string{"Review alert details and follow guidance."},
			"assumptions": []string{"Alerts feed is up to date."},
		}
	}

	raw, _ := json.Marshal(sections)
	resp := &forecaster.Response{
		Sections:          sections,
		Confidence:        forecaster.Confidence{Value: 40, Rationale: "Derived from alert feed."},
		UsedFeatureFields: []string{},
		BottomLine:        "Bottom line: no alerts currently active.",
		RawText:           string(raw),
		Provider:          ProviderAlertsManual,
		PromptSummary:     "alerts | " + place,
		Mode:              forecaster.ModeOffline,
		Meta:              map[string]any{"records": len(alerts)},
	}
	if len(alerts) > 0 {
		resp.Confidence.Value = 60
		resp.UsedFeatureFields = []string{featurepack.SectionAlertsQuick}
		resp.BottomLine = "Bottom line: monitor these alerts."
	}
	return resp
}
