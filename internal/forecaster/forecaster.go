// Package forecaster turns a feature pack into a structured briefing by
// walking an ordered chain of LLM providers, falling back to a deterministic
// response when none of them produce something usable.
package forecaster

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/i474232898/wx-briefing/internal/featurepack"
	"github.com/i474232898/wx-briefing/internal/llm"
)

// Defaults for the user-selected tone.
const (
	DefaultStyle   = "concise"
	DefaultPersona = "general"
)

// FallbackObserver is told every time a fallback response is returned.
type FallbackObserver interface {
	ObserveFallback(reason string)
}

// Forecaster owns the provider chain.
type Forecaster struct {
	providers []llm.Provider
	offline   bool
	style     string
	persona   string
	logger    *slog.Logger
	observer  FallbackObserver

	warnOnce sync.Once
}

// Option configures a Forecaster.
type Option func(*Forecaster)

// WithOffline short-circuits the chain.
func WithOffline(offline bool) Option {
	return func(f *Forecaster) { f.offline = offline }
}

// WithStyle sets the style and persona passed to the model. Empty values
// keep the defaults.
func WithStyle(style, persona string) Option {
	return func(f *Forecaster) {
		if style != "" {
			f.style = style
		}
		if persona != "" {
			f.persona = persona
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Forecaster) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithFallbackObserver(o FallbackObserver) Option {
	return func(f *Forecaster) { f.observer = o }
}

// New builds a forecaster that tries providers in order. Nil entries are
// ignored.
func New(providers []llm.Provider, opts ...Option) *Forecaster {
	f := &Forecaster{
		style:   DefaultStyle,
		persona: DefaultPersona,
		logger:  slog.Default(),
	}
	for _, p := range providers {
		if p != nil {
			f.providers = append(f.providers, p)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Providers lists the configured provider names in chain order.
func (f *Forecaster) Providers() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return names
}

// attempt records how one provider in the chain fared.
type attempt struct {
	Provider string      `json:"provider"`
	Outcome  llm.Outcome `json:"outcome"`
	Error    string      `json:"error,omitempty"`
}

// Generate runs the chain. It never fails: every error path ends in a
// fallback response carrying the reason in its provider tag and meta.
func (f *Forecaster) Generate(ctx context.Context, req Request) *Response {
	if f.offline {
		return f.fallback(req, ProviderOffline, nil)
	}
	if len(f.providers) == 0 {
		f.warnOnce.Do(func() {
			f.logger.Warn("no AI provider configured; using deterministic fallback")
		})
		return f.fallback(req, FallbackNoProvider, map[string]any{"error": "no-provider-configured"})
	}

	messages, err := f.messages(req)
	if err != nil {
		return f.fallback(req, FallbackUnparseable, map[string]any{"error": err.Error()})
	}

	attempts := make([]attempt, 0, len(f.providers))
	for _, p := range f.providers {
		completion, err := p.Complete(ctx, messages)
		outcome := llm.Classify(err)
		if err != nil {
			f.logger.Warn("provider failed",
				slog.String("provider", p.Name()),
				slog.String("outcome", string(outcome)),
				slog.Any("error", err))
			attempts = append(attempts, attempt{Provider: p.Name(), Outcome: outcome, Error: err.Error()})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		attempts = append(attempts, attempt{Provider: p.Name(), Outcome: outcome})
		return f.fromCompletion(req, p.Name(), completion, attempts)
	}

	return f.fallback(req, exhaustedTag(attempts), map[string]any{
		"error":    joinErrors(attempts),
		"attempts": attempts,
	})
}

func (f *Forecaster) fromCompletion(req Request, name string, c *llm.Completion, attempts []attempt) *Response {
	meta := map[string]any{
		"model":    c.Model,
		"attempts": c.Attempts,
	}
	if c.Usage != nil {
		meta["usage"] = c.Usage
	}
	if len(attempts) > 1 {
		meta["failed_providers"] = attempts[:len(attempts)-1]
	}

	resp, err := parseReply(c.Text)
	if err != nil {
		f.logger.Warn("model reply not parseable",
			slog.String("provider", name),
			slog.Any("error", err))
		meta["parse_error"] = err.Error()
		out := f.fallback(req, FallbackUnparseable, meta)
		out.RawText = c.Text
		return out
	}

	resp.Provider = name + ":" + c.Model
	resp.PromptSummary = PromptSummary(req)
	resp.Mode = ModeOnline
	resp.Meta = meta
	return resp
}

func (f *Forecaster) fallback(req Request, tag string, meta map[string]any) *Response {
	if f.observer != nil {
		f.observer.ObserveFallback(strings.TrimPrefix(tag, "fallback:"))
	}
	resp := fallbackResponse(req, tag)
	resp.Meta = meta
	return resp
}

func exhaustedTag(attempts []attempt) string {
	for _, a := range attempts {
		if a.Outcome != llm.OutcomeAuthFailed {
			return FallbackExhausted
		}
	}
	return FallbackAuth
}

func joinErrors(attempts []attempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, a.Provider+": "+a.Error)
	}
	return strings.Join(parts, "; ")
}

// ExplainResult is the answer to an explain request.
type ExplainResult struct {
	Mode     Mode           `json:"mode"`
	Text     string         `json:"text"`
	Meta     map[string]any `json:"meta"`
	Response *Response      `json:"-"`
}

// Explain asks the chain why the previous answer came out the way it did.
// command is the name of the command whose state is being explained.
func (f *Forecaster) Explain(ctx context.Context, question string, pack *featurepack.Pack, command string) ExplainResult {
	intent := "explain"
	if command != "" {
		intent = "explain:" + command
	}
	resp := f.Generate(ctx, Request{
		Query:   question,
		Intent:  intent,
		Pack:    pack,
		Verbose: true,
		Explain: true,
	})

	meta := map[string]any{
		"provider":            resp.Provider,
		"confidence":          resp.Confidence,
		"used_feature_fields": resp.UsedFeatureFields,
		"bottom_line":         resp.BottomLine,
		"prompt_summary":      resp.PromptSummary,
	}
	for k, v := range resp.Meta {
		if _, taken := meta[k]; !taken {
			meta[k] = v
		}
	}

	text := resp.SummaryText()
	if text == "" {
		text = resp.BottomLine
	}
	return ExplainResult{Mode: resp.Mode, Text: text, Meta: meta, Response: resp}
}
