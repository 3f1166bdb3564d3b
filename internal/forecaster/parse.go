package forecaster

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	defaultConfidenceValue     = 30
	defaultConfidenceRationale = "Model confidence not supplied."
	defaultBottomLine          = "No bottom line provided."
)

var errNotObject = errors.New("model reply is not a JSON object")

// stripFence removes a leading ```lang line and a trailing ``` line.
func stripFence(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

type reply struct {
	Sections          map[string]any  `json:"sections"`
	Confidence        json.RawMessage `json:"confidence"`
	UsedFeatureFields json.RawMessage `json:"used_feature_fields"`
	BottomLine        json.RawMessage `json:"bottom_line"`
}

// parseReply decodes a model reply into the response fields it carries,
// substituting defaults for anything missing or malformed.
func parseReply(raw string) (*Response, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimSpace(stripFence(cleaned))
	}
	if !strings.HasPrefix(cleaned, "{") {
		return nil, errNotObject
	}

	var r reply
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, err
	}

	resp := &Response{
		Sections:          r.Sections,
		Confidence:        parseConfidence(r.Confidence),
		UsedFeatureFields: parseStrings(r.UsedFeatureFields),
		BottomLine:        defaultBottomLine,
		RawText:           raw,
	}
	if resp.Sections == nil {
		resp.Sections = map[string]any{}
	}
	var bottom string
	if err := json.Unmarshal(r.BottomLine, &bottom); err == nil && strings.TrimSpace(bottom) != "" {
		resp.BottomLine = bottom
	}
	return resp, nil
}

func parseConfidence(raw json.RawMessage) Confidence {
	c := Confidence{Value: defaultConfidenceValue, Rationale: defaultConfidenceRationale}
	if len(raw) == 0 {
		return c
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		c.Value = clamp(n)
		return c
	}

	var obj struct {
		Value     *float64 `json:"value"`
		Rationale string   `json:"rationale"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return c
	}
	if obj.Value != nil {
		c.Value = clamp(*obj.Value)
	}
	if strings.TrimSpace(obj.Rationale) != "" {
		c.Rationale = obj.Rationale
	}
	return c
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func parseStrings(raw json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
