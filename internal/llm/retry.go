package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

// RetryPolicy controls exponential backoff between provider attempts.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	// AttemptTimeout bounds a single attempt; zero leaves it to the HTTP client.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is three attempts starting at 750ms and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 750 * time.Millisecond,
		Multiplier:      2,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := time.Duration(float64(p.InitialInterval) * math.Pow(mult, float64(attempt-1)))
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// AttemptObserver is notified after every provider attempt.
type AttemptObserver interface {
	ObserveAttempt(provider string, outcome Outcome)
}

// resilience wraps provider calls with retries and a circuit breaker.
type resilience struct {
	name     string
	policy   RetryPolicy
	circuit  *gobreaker.CircuitBreaker
	clock    clockwork.Clock
	observer AttemptObserver
	logger   *slog.Logger
}

func newResilience(name string, policy RetryPolicy, clock clockwork.Clock, observer AttemptObserver, logger *slog.Logger) *resilience {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &resilience{
		name:   name,
		policy: policy,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
			// Auth failures say nothing about upstream health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrAuth)
			},
		}),
		clock:    clock,
		observer: observer,
		logger:   logger,
	}
}

// do runs call until it succeeds, fails terminally, or runs out of attempts.
func (r *resilience) do(ctx context.Context, call func(ctx context.Context) (*Completion, error)) (*Completion, error) {
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := r.circuit.Execute(func() (interface{}, error) {
			return r.attempt(ctx, call)
		})

		if err == nil {
			completion, ok := result.(*Completion)
			if !ok || completion == nil {
				return nil, fmt.Errorf("%s: unexpected result type from circuit breaker", r.name)
			}
			completion.Attempts = attempt
			r.observe(OutcomeSuccess)
			return completion, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.observe(OutcomeFailed)
			return nil, fmt.Errorf("%s: %w: %v", r.name, ErrCircuitOpen, err)
		}

		if !Retryable(err) {
			r.observe(Classify(err))
			return nil, err
		}
		if attempt >= r.policy.MaxAttempts {
			r.observe(OutcomeRetriesExhausted)
			return nil, fmt.Errorf("%s: %w after %d attempts: %w", r.name, ErrRetriesExhausted, attempt, err)
		}

		delay := r.policy.delay(attempt)
		r.logger.Debug("retrying provider", "provider", r.name, "attempt", attempt, "delay", delay, "error", err)
		r.observe(OutcomeRetried)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.clock.After(delay):
		}
	}
}

func (r *resilience) attempt(ctx context.Context, call func(ctx context.Context) (*Completion, error)) (*Completion, error) {
	if r.policy.AttemptTimeout <= 0 {
		return call(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, r.policy.AttemptTimeout)
	defer cancel()

	c, err := call(actx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return nil, Transient(err)
	}
	return c, err
}

func (r *resilience) observe(outcome Outcome) {
	if r.observer != nil {
		r.observer.ObserveAttempt(r.name, outcome)
	}
}
