package featurepack

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DefaultHorizon is used when a horizon code is missing or unknown.
const DefaultHorizon = 24

var horizons = map[string]int{
	"6h":  6,
	"12h": 12,
	"24h": 24,
	"3d":  72,
}

// HorizonHours maps a horizon code to hours.
func HorizonHours(code string) int {
	if h, ok := horizons[strings.ToLower(strings.TrimSpace(code))]; ok {
		return h
	}
	return DefaultHorizon
}

// TimeWindow is the requested forecast period.
type TimeWindow struct {
	Start time.Time `json:"-"`
	End   time.Time `json:"-"`

	StartISO   string `json:"start_iso"`
	EndISO     string `json:"end_iso"`
	Horizon    string `json:"horizon"`
	StartLocal string `json:"start_local,omitempty"`
	EndLocal   string `json:"end_local,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

// BuildWindow computes the window starting at the parsed hint, or at now when
// the hint is empty or unparseable. tz names the place's IANA zone; hints are
// read in that zone and local times are added when it loads.
func BuildWindow(now time.Time, hint, horizon, tz string) TimeWindow {
	hours := HorizonHours(horizon)

	loc := time.UTC
	localKnown := false
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
			localKnown = true
		}
	}

	start := now.UTC()
	if hint = strings.TrimSpace(hint); hint != "" {
		if parsed, err := dateparse.ParseIn(hint, loc); err == nil {
			start = parsed.UTC()
		}
	}
	end := start.Add(time.Duration(hours) * time.Hour)

	w := TimeWindow{
		Start:    start,
		End:      end,
		StartISO: start.Format(time.RFC3339),
		EndISO:   end.Format(time.RFC3339),
		Horizon:  fmt.Sprintf("%dh", hours),
	}
	if localKnown {
		w.StartLocal = start.In(loc).Format(time.RFC3339)
		w.EndLocal = end.In(loc).Format(time.RFC3339)
		w.Timezone = tz
	}
	return w
}
