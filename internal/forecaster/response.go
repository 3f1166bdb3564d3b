package forecaster

import (
	"fmt"
	"strings"
)

// Mode says which branch of the chain produced a response.
type Mode string

const (
	ModeOnline   Mode = "online"
	ModeOffline  Mode = "offline"
	ModeFallback Mode = "fallback"
)

// Confidence is a 0-100 score with a one-line rationale.
type Confidence struct {
	Value     float64 `json:"value"`
	Rationale string  `json:"rationale"`
}

// Response is the normalised forecaster output. Sections is free-form; the
// keys follow the system prompt's schema.
type Response struct {
	Sections          map[string]any `json:"sections"`
	Confidence        Confidence     `json:"confidence"`
	UsedFeatureFields []string       `json:"used_feature_fields"`
	BottomLine        string         `json:"bottom_line"`
	RawText           string         `json:"raw_text"`
	Provider          string         `json:"provider"`
	PromptSummary     string         `json:"prompt_summary"`
	Mode              Mode           `json:"mode"`
	Meta              map[string]any `json:"meta,omitempty"`
}

// SummaryText flattens the summary section into one string.
func (r *Response) SummaryText() string {
	if r == nil || r.Sections == nil {
		return ""
	}
	switch v := r.Sections["summary"].(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, " ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}
