package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
)

// Defaults for the OpenRouter provider.
const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	maxResponseBytes         = 5 << 20
)

// DefaultOpenRouterModels is the model preference list used when none is configured.
var DefaultOpenRouterModels = []string{"x-ai/grok-4-fast:free", "openai/gpt-oss-120b:free"}

// ProviderOption configures a provider's ambient dependencies.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	clock    clockwork.Clock
	observer AttemptObserver
	logger   *slog.Logger
}

// WithClock replaces the clock used for backoff sleeps.
func WithClock(c clockwork.Clock) ProviderOption {
	return func(o *providerOptions) { o.clock = c }
}

// WithAttemptObserver attaches a metrics observer.
func WithAttemptObserver(obs AttemptObserver) ProviderOption {
	return func(o *providerOptions) { o.observer = obs }
}

// WithLogger sets the provider logger.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(o *providerOptions) { o.logger = l }
}

func applyOptions(opts []ProviderOption) providerOptions {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// OpenRouterConfig holds settings for the OpenRouter provider.
type OpenRouterConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Referer     string
	Title       string
	Retry       RetryPolicy
}

// OpenRouter talks to OpenRouter's OpenAI-compatible chat completions endpoint.
type OpenRouter struct {
	client *http.Client
	cfg    OpenRouterConfig
	res    *resilience
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// NewOpenRouter creates the provider. An empty API key is an error so an
// unconfigured provider never enters the chain.
func NewOpenRouter(client *http.Client, cfg OpenRouterConfig, opts ...ProviderOption) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: %w: API key is required", ErrAuth)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenRouterModels[0]
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	o := applyOptions(opts)
	return &OpenRouter{
		client: client,
		cfg:    cfg,
		res:    newResilience("openrouter", cfg.Retry, o.clock, o.observer, o.logger),
	}, nil
}

// Name returns "openrouter".
func (p *OpenRouter) Name() string {
	return "openrouter"
}

// Complete sends messages and returns the first choice's text.
func (p *OpenRouter) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshal request: %w", err)
	}

	return p.res.do(ctx, func(ctx context.Context) (*Completion, error) {
		return p.send(ctx, body)
	})
}

func (p *OpenRouter) send(ctx context.Context, body []byte) (*Completion, error) {
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openrouter: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", p.cfg.Referer)
	}
	if p.cfg.Title != "" {
		req.Header.Set("X-Title", p.cfg.Title)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, err
		}
		return nil, Transient(fmt.Errorf("openrouter: send request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, Transient(fmt.Errorf("openrouter: read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Provider: "openrouter", Code: resp.StatusCode, Body: snippet(raw)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, Transient(fmt.Errorf("openrouter: invalid JSON: %w", err))
	}

	text := firstMessage(decoded)
	if text == "" {
		return nil, fmt.Errorf("openrouter: %w", ErrNoContent)
	}

	model := decoded.Model
	if model == "" {
		model = p.cfg.Model
	}
	return &Completion{Text: text, Model: model, Usage: decoded.Usage}, nil
}

// firstMessage reads choices[0].message.content, which is either a string
// or a list of parts carrying text.
func firstMessage(r chatResponse) string {
	if len(r.Choices) == 0 {
		return ""
	}
	content := r.Choices[0].Message.Content
	if len(content) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &parts); err == nil {
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(part.Text)
		}
		return strings.TrimSpace(b.String())
	}
	return ""
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
