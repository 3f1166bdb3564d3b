// Package ratelimit keeps one token-bucket limiter per upstream.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Defaults applied when a Registry is built with non-positive values.
const (
	DefaultPerMinute = 60
	DefaultBurst     = 10
)

// Registry hands out a limiter per upstream name, creating it on first use.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRegistry allows perMinute requests per upstream with the given burst.
func NewRegistry(perMinute, burst int) *Registry {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Registry{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

// Limiter returns the limiter for name.
func (r *Registry) Limiter(name string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[name]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[name] = l
	}
	return l
}

// Wait blocks until name may issue a request or ctx is done. A nil registry
// never blocks.
func (r *Registry) Wait(ctx context.Context, name string) error {
	if r == nil {
		return nil
	}
	if err := r.Limiter(name).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s canceled: %w", name, err)
	}
	return nil
}
