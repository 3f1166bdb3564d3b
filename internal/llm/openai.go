package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig holds settings for the OpenAI provider. BaseURL may point at
// any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Retry       RetryPolicy
}

// OpenAI is the secondary provider, backed by the go-openai client.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
	res    *resilience
}

// NewOpenAI creates the provider. An empty API key is an error.
func NewOpenAI(httpClient *http.Client, cfg OpenAIConfig, opts ...ProviderOption) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w: API key is required", ErrAuth)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	o := applyOptions(opts)
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		res:    newResilience("openai", cfg.Retry, o.clock, o.observer, o.logger),
	}, nil
}

// Name returns "openai".
func (p *OpenAI) Name() string {
	return "openai"
}

// Complete sends messages through the chat completions API.
func (p *OpenAI) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: float32(p.cfg.Temperature),
		MaxTokens:   p.cfg.MaxTokens,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	return p.res.do(ctx, func(ctx context.Context) (*Completion, error) {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, p.classify(ctx, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("openai: %w", ErrNoContent)
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return nil, fmt.Errorf("openai: %w", ErrNoContent)
		}
		model := resp.Model
		if model == "" {
			model = p.cfg.Model
		}
		return &Completion{
			Text:  text,
			Model: model,
			Usage: &Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}, nil
	})
}

// classify turns go-openai errors into the package's error taxonomy.
func (p *OpenAI) classify(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{Provider: "openai", Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &StatusError{Provider: "openai", Code: reqErr.HTTPStatusCode, Body: snippet(reqErr.Body)}
	}
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	return Transient(fmt.Errorf("openai: %w", err))
}
