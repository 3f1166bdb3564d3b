// Package fetch runs independent upstream lookups concurrently with
// per-task deadlines and failure isolation.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency bounds the worker pool when none is configured.
	DefaultConcurrency = 8
	// DefaultTimeout applies to tasks that do not set their own.
	DefaultTimeout = 3 * time.Second
)

var (
	// ErrEmpty marks a task that returned no usable data.
	ErrEmpty = errors.New("empty result")
	// ErrTimeout marks a task abandoned at its deadline.
	ErrTimeout = errors.New("timed out")
)

// Task is a named unit of work. Run receives a context that expires after Timeout.
type Task struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) (any, error)
}

// Result is the diagnostics entry for one task.
type Result struct {
	Name      string        `json:"name"`
	Elapsed   time.Duration `json:"elapsed"`
	Succeeded bool          `json:"succeeded"`
	Detail    string        `json:"detail,omitempty"`
}

// Results maps task names to the values of the tasks that succeeded.
type Results map[string]any

// Value returns the successful result for name as a T.
func Value[T any](r Results, name string) (T, bool) {
	v, ok := r[name]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Observer is notified once per finished task.
type Observer interface {
	ObserveFetch(name string, elapsed time.Duration, succeeded bool)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithDefaultTimeout sets the deadline used for tasks without one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithClock replaces the clock used for elapsed timings.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithLogger sets the logger used for task failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator executes batches of tasks on a bounded pool.
type Coordinator struct {
	concurrency    int
	defaultTimeout time.Duration
	observer       Observer
	clock          clockwork.Clock
	logger         *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		concurrency:    DefaultConcurrency,
		defaultTimeout: DefaultTimeout,
		clock:          clockwork.NewRealClock(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type slot struct {
	value  any
	result Result
}

// FetchAll runs every task and waits for all of them. A failing, panicking,
// slow or empty task never affects its siblings; it only shows up as a
// failed diagnostics entry. Diagnostics follow submission order. When two
// tasks share a name the later one wins in Results.
func (c *Coordinator) FetchAll(ctx context.Context, tasks []Task) (Results, []Result) {
	slots := make([]slot, len(tasks))

	// No errgroup.WithContext: one failure must not cancel the others.
	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			slots[i] = c.run(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	results := make(Results, len(tasks))
	diagnostics := make([]Result, 0, len(tasks))
	for _, s := range slots {
		diagnostics = append(diagnostics, s.result)
		if s.result.Succeeded {
			results[s.result.Name] = s.value
		}
	}
	return results, diagnostics
}

type outcome struct {
	value any
	err   error
}

func (c *Coordinator) run(parent context.Context, task Task) slot {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := c.clock.Now()

	// The thunk runs on its own goroutine so a task that ignores ctx is
	// abandoned at the deadline instead of holding a pool slot.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		if task.Run == nil {
			done <- outcome{err: errors.New("no work function")}
			return
		}
		v, err := task.Run(ctx)
		done <- outcome{value: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: fmt.Errorf("%w after %s", ErrTimeout, timeout)}
		if parent.Err() != nil {
			out.err = parent.Err()
		}
	}

	if out.err == nil && IsEmpty(out.value) {
		out.err = ErrEmpty
	}
	if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && parent.Err() == nil {
		out.err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	res := Result{
		Name:      task.Name,
		Elapsed:   c.clock.Since(start),
		Succeeded: out.err == nil,
	}
	if out.err != nil {
		res.Detail = out.err.Error()
		c.logger.Debug("fetch task failed", "task", task.Name, "error", out.err)
	}
	if c.observer != nil {
		c.observer.ObserveFetch(task.Name, res.Elapsed, res.Succeeded)
	}
	return slot{value: out.value, result: res}
}

// IsEmpty reports whether v carries no data: nil, a nil pointer, a zero
// struct, or an empty string, slice or map.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Struct:
		return rv.IsZero()
	}
	return false
}
