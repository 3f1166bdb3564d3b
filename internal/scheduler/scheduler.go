package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/wx-briefing/internal/store"
	"github.com/i474232898/wx-briefing/internal/weather"
)

// DefaultInterval is used when the configured interval is under a minute.
const DefaultInterval = 15 * time.Minute

// Builder produces both worldview variants from one fetch.
type Builder interface {
	Worldviews(ctx context.Context) (all, severe weather.Worldview)
}

// Scheduler periodically rebuilds both worldview variants into a store.
type Scheduler struct {
	scheduler *gocron.Scheduler
	builder   Builder
	store     weather.Store
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(builder Builder, st weather.Store, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		builder:   builder,
		store:     st,
		interval:  interval,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = int(DefaultInterval.Minutes())
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Refresh(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Refresh builds the full and severe-only worldviews and stores them.
func (s *Scheduler) Refresh(ctx context.Context) {
	s.logger.Debug("scheduler: refreshing worldview")

	all, severe := s.builder.Worldviews(ctx)
	s.store.SaveSnapshot(store.KeyAll, all)
	s.store.SaveSnapshot(store.KeySevere, severe)

	s.logger.Debug("scheduler: worldview refresh complete",
		"samples", all.Meta.Samples)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
