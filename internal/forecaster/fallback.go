package forecaster

import (
	"encoding/json"
	"strings"

	"github.com/i474232898/wx-briefing/internal/featurepack"
)

// Fallback constants.
const (
	FallbackConfidence = 25
	FallbackBottomLine = "Bottom line: wx requires an AI provider configured to deliver a full forecast."

	ProviderOffline = "offline"
)

// Fallback provider tags.
const (
	FallbackNoProvider  = "fallback:no-provider"
	FallbackAuth        = "fallback:auth"
	FallbackExhausted   = "fallback:exhausted"
	FallbackUnparseable = "fallback:unparseable"
)

// fallbackResponse builds the deterministic response used offline and
// whenever the chain produces nothing usable.
func fallbackResponse(req Request, provider string) *Response {
	used := featurepack.UsedFields(req.Pack)

	summary := []string{
		"wx is operating with limited connectivity and cannot reach AI services.",
		"Responding with a conservative qualitative outlook based on provided context only.",
	}
	if req.Explain {
		summary = []string{
			"Explain mode: describing which Feature Pack inputs were available and how they would influence a forecast.",
		}
	}

	fields := "none supplied"
	if len(used) > 0 {
		fields = strings.Join(used, ", ")
	}

	sections := map[string]any{
		"summary":  summary,
		"timeline": []string{"No timeline available without model output."},
		"risk_cards": []map[string]any{{
			"hazard":     "General",
			"level":      "Low",
			"drivers":    []string{"Insufficient data; AI model unavailable"},
			"confidence": "Low confidence; qualitative placeholder.",
		}},
		"confidence": "Confidence limited by offline mode or missing API keys.",
		"actions": []string{
			"Monitor trusted weather sources and official alerts.",
			"Re-run wx with API keys configured for a richer briefing.",
		},
		"assumptions": []string{"Feature Pack fields used: " + fields},
	}

	raw, _ := json.Marshal(sections)

	mode := ModeFallback
	if provider == ProviderOffline {
		mode = ModeOffline
	}

	return &Response{
		Sections:          sections,
		Confidence:        Confidence{Value: FallbackConfidence, Rationale: "Offline fallback."},
		UsedFeatureFields: used,
		BottomLine:        FallbackBottomLine,
		RawText:           string(raw),
		Provider:          provider,
		PromptSummary:     PromptSummary(req),
		Mode:              mode,
	}
}
