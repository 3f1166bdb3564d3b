package llm

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	outcomes []Outcome
}

func (c *countingObserver) ObserveAttempt(_ string, o Outcome) {
	c.outcomes = append(c.outcomes, o)
}

func newTestOpenAI(t *testing.T, handler http.HandlerFunc, opts ...ProviderOption) (*OpenAI, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p, err := NewOpenAI(srv.Client(), OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Model:   "gpt-test",
		Retry:   fastRetry(),
	}, opts...)
	require.NoError(t, err)
	return p, &calls
}

func TestOpenAIComplete(t *testing.T) {
	p, calls := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	})

	c, err := p.Complete(t.Context(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "hi", c.Text)
	assert.Equal(t, "gpt-test", c.Model)
	assert.Equal(t, 4, c.Usage.TotalTokens)
	assert.EqualValues(t, 1, *calls)
}

func TestOpenAIAuthFailure(t *testing.T) {
	p, calls := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	})

	_, err := p.Complete(t.Context(), prompt)
	assert.ErrorIs(t, err, ErrAuth)
	assert.EqualValues(t, 1, *calls)
}

func TestOpenAIServerErrorsExhaust(t *testing.T) {
	obs := &countingObserver{}
	p, calls := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream"}}`))
	}, WithAttemptObserver(obs))

	_, err := p.Complete(t.Context(), prompt)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.EqualValues(t, 3, *calls)
	assert.Equal(t, []Outcome{OutcomeRetried, OutcomeRetried, OutcomeRetriesExhausted}, obs.outcomes)
}

func TestOpenAINoChoices(t *testing.T) {
	p, _ := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
	})

	_, err := p.Complete(t.Context(), prompt)
	assert.ErrorIs(t, err, ErrNoContent)
}
