// Package llm holds the chat-completion providers used by the forecaster and
// the retry policy they share.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting when the upstream returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a successful provider reply.
type Completion struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Attempts int    `json:"attempts"`
	Usage    *Usage `json:"usage,omitempty"`
}

// Provider produces a completion for a conversation. Implementations retry
// transient failures themselves and return a classified error otherwise.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

var (
	// ErrAuth is returned when the upstream rejects the credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrNoContent is returned when a reply carries no assistant text.
	ErrNoContent = errors.New("response missing assistant content")
	// ErrRetriesExhausted wraps the last error once all attempts are used.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrCircuitOpen is returned while the provider's breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// StatusError is a non-2xx reply from an upstream.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Unwrap maps 401/403 onto ErrAuth.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return ErrAuth
	}
	return nil
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// transientError marks a failure worth another attempt, such as a transport
// error or an undecodable body.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the retry loop tries again.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Retryable reports whether err should be retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus[se.Code]
	}
	var te *transientError
	return errors.As(err, &te)
}

// Outcome tags how a provider attempt ended.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeAuthFailed       Outcome = "auth_failed"
	OutcomeRetriesExhausted Outcome = "retries_exhausted"
	OutcomeFailed           Outcome = "failed"
	OutcomeRetried          Outcome = "retried"
)

// Classify maps a provider error onto an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrAuth):
		return OutcomeAuthFailed
	case errors.Is(err, ErrRetriesExhausted):
		return OutcomeRetriesExhausted
	default:
		return OutcomeFailed
	}
}
