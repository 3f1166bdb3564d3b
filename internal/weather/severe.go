package weather

import (
	"strings"

	"github.com/i474232898/wx-briefing/internal/common"
)

// SeverePredicate reports whether an alert event should be kept.
type SeverePredicate func(event string) bool

// DefaultSevereKeywords are the substrings that mark an event as severe.
var DefaultSevereKeywords = []string{
	"tornado",
	"flash flood",
	"severe thunderstorm",
	"flood",
	"pds",
	"particularly dangerous",
	"emergency",
}

// KeywordPredicate matches events containing any keyword, case-insensitively.
func KeywordPredicate(keywords ...string) SeverePredicate {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return func(event string) bool {
		return common.HasAny(strings.ToLower(event), lowered...)
	}
}

// IsSevere applies the default keyword list.
var IsSevere = KeywordPredicate(DefaultSevereKeywords...)

// FilterAlerts returns the alerts whose event satisfies keep. A nil predicate
// returns alerts unchanged.
func FilterAlerts(alerts []Alert, keep SeverePredicate) []Alert {
	if keep == nil {
		return alerts
	}
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if keep(a.Event) {
			out = append(out, a)
		}
	}
	return out
}
