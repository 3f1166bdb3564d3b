// Package providers holds the upstream adapters: Open-Meteo for geocoding,
// observations and profiles, NWS for US alerts and MeteoAlarm for Europe.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wx-briefing/internal/ratelimit"
)

// UserAgent is sent on every upstream request.
const UserAgent = "wx-cli/1.0 (+https://github.com/i474232898/wx-briefing)"

const maxBodyBytes = 5 << 20

var (
	// ErrOffline is returned at once, without network I/O, in offline mode.
	ErrOffline = errors.New("offline mode")
	// ErrNoResult is returned when an upstream answers but has nothing usable.
	ErrNoResult = errors.New("no result")

	errUnexpectedStatus = errors.New("unexpected status code")
	errCircuitOpen      = errors.New("circuit breaker open")
)

// Client is the HTTP plumbing shared by all adapters: one *http.Client, a
// rate limiter and a circuit breaker per upstream, and a body size cap.
type Client struct {
	http    *http.Client
	limits  *ratelimit.Registry
	offline bool
	logger  *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient builds the shared client. limits may be nil.
func NewClient(httpClient *http.Client, limits *ratelimit.Registry, offline bool, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:     httpClient,
		limits:   limits,
		offline:  offline,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Offline reports whether the client refuses network access.
func (c *Client) Offline() bool {
	return c.offline
}

func (c *Client) breaker(upstream string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[upstream]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        upstream,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		})
		c.breakers[upstream] = cb
	}
	return cb
}

// get fetches rawURL with params and returns the capped body. There are no
// retries at this level; a failed upstream simply yields an error.
func (c *Client) get(ctx context.Context, upstream, rawURL string, params url.Values, accept string) ([]byte, error) {
	if c.offline {
		return nil, ErrOffline
	}
	if err := c.limits.Wait(ctx, upstream); err != nil {
		return nil, err
	}

	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}

	result, err := c.breaker(upstream).Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", UserAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if err != nil {
			return nil, err
		}
		if len(body) > maxBodyBytes {
			return nil, fmt.Errorf("%s response exceeds %d bytes", upstream, maxBodyBytes)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		c.logger.Debug("upstream request failed",
			slog.String("upstream", upstream),
			slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", upstream, err)
	}
	return result.([]byte), nil
}

func (c *Client) getJSON(ctx context.Context, upstream, rawURL string, params url.Values, out any) error {
	body, err := c.get(ctx, upstream, rawURL, params, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", upstream, err)
	}
	return nil
}

// first returns the first element of a series, or nil.
func first(values []*float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
