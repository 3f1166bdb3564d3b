package forecaster

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/i474232898/wx-briefing/internal/featurepack"
	"github.com/i474232898/wx-briefing/internal/llm"
)

// SystemPrompt is the contract every provider is held to.
const SystemPrompt = `You are wx, an expert operational meteorologist providing concise, actionable briefings.
Follow this contract strictly:
- Quantify uncertainty and avoid sensational language.
- Use both local and UTC times when possible.
- Never fabricate specific values; rely on provided Feature Pack or clearly state limitations.
- Reference which Feature Pack fields you used.
- Output JSON matching the schema discussed below.

Response schema (JSON object):
{
  "sections": {
    "summary": ["2-4 sentences"],
    "timeline": ["Bullet timeline items with local and UTC times"],
    "risk_cards": [
      {
        "hazard": "Severe|Flooding|Winter|Wind|Heat|Cold|Fire|Aviation",
        "level": "Low|Moderate|High",
        "drivers": ["key drivers"],
        "confidence": "short rationale"
      }
    ],
    "confidence": "Explain uncertainties and what could change.",
    "actions": ["Actionable advice tied to user context"],
    "assumptions": ["Key assumptions you made"]
  },
  "confidence": {"value": 0-100, "rationale": "One-line confidence summary"},
  "used_feature_fields": ["list of Feature Pack keys you relied on"],
  "bottom_line": "Single sentence takeaway"
}

Keep output ≤ 400 words unless explicitly told verbose. If information is missing,
speak qualitatively and acknowledge the gap. If explain_mode is true, focus on
clarifying which inputs drove the previous answer and why confidence is set.`

// Request is one forecaster invocation.
type Request struct {
	Query   string
	Intent  string
	Pack    *featurepack.Pack
	Verbose bool
	Explain bool
}

// PromptSummary is "intent | query" plus optional verbose and explain markers.
func PromptSummary(req Request) string {
	parts := []string{req.Intent, req.Query}
	if req.Verbose {
		parts = append(parts, "verbose")
	}
	if req.Explain {
		parts = append(parts, "explain")
	}
	return strings.Join(parts, " | ")
}

func (f *Forecaster) messages(req Request) ([]llm.Message, error) {
	pack := req.Pack
	if pack == nil {
		pack = featurepack.New()
	}
	packJSON, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode feature pack: %w", err)
	}

	instructions := "Provide a meteorological briefing."
	if req.Explain {
		instructions = "Focus on explaining feature usage and confidence rationale."
	}

	var b strings.Builder
	b.WriteString("You are to answer as wx.\n")
	fmt.Fprintf(&b, "Query: %s\n", req.Query)
	fmt.Fprintf(&b, "Intent: %s\n", req.Intent)
	fmt.Fprintf(&b, "Style: %s\n", f.style)
	fmt.Fprintf(&b, "Persona: %s\n", f.persona)
	fmt.Fprintf(&b, "Verbose: %t\n", req.Verbose)
	fmt.Fprintf(&b, "Explain mode: %t\n", req.Explain)
	b.WriteString("Feature Pack JSON:\n")
	b.Write(packJSON)
	b.WriteString("\nAdditional instructions: ")
	b.WriteString(instructions)

	return []llm.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: b.String()},
	}, nil
}
