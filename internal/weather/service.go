package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/wx-briefing/internal/fetch"
)

// Service builds the multi-region worldview. All sample points and regional
// alert feeds are fetched in one coordinator batch; a failed fetch only
// reduces the data available to its region.
type Service struct {
	sampler     PointSampler
	regions     []Region
	coordinator *fetch.Coordinator
	logger      *slog.Logger
	clock       clockwork.Clock

	offline       bool
	units         Units
	severe        SeverePredicate
	sampleTimeout time.Duration
	alertTimeout  time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithOffline makes Worldview return the synthetic overview without any fetch.
func WithOffline(offline bool) ServiceOption {
	return func(s *Service) { s.offline = offline }
}

// WithUnits sets the temperature units requested from the sampler.
func WithUnits(u Units) ServiceOption {
	return func(s *Service) { s.units = u }
}

// WithSeverePredicate replaces the severe-only alert filter.
func WithSeverePredicate(p SeverePredicate) ServiceOption {
	return func(s *Service) { s.severe = p }
}

// WithTimeouts sets the per-sample and per-feed deadlines.
func WithTimeouts(sample, alerts time.Duration) ServiceOption {
	return func(s *Service) {
		if sample > 0 {
			s.sampleTimeout = sample
		}
		if alerts > 0 {
			s.alertTimeout = alerts
		}
	}
}

// WithServiceClock replaces the clock used for timestamps and fetch_ms.
func WithServiceClock(c clockwork.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new Service.
func NewService(sampler PointSampler, regions []Region, coordinator *fetch.Coordinator, opts ...ServiceOption) *Service {
	s := &Service{
		sampler:       sampler,
		regions:       regions,
		coordinator:   coordinator,
		logger:        slog.Default(),
		clock:         clockwork.NewRealClock(),
		units:         UnitsImperial,
		severe:        IsSevere,
		sampleTimeout: 5 * time.Second,
		alertTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Worldview fetches and aggregates every configured region.
func (s *Service) Worldview(ctx context.Context, severeOnly bool) Worldview {
	if s.offline {
		wv := SyntheticWorldview(severeOnly)
		wv.GeneratedAt = s.clock.Now().UTC()
		return wv
	}

	var keep SeverePredicate
	if severeOnly {
		keep = s.severe
	}
	return s.assemble(s.collect(ctx, keep), severeOnly, nil)
}

// Worldviews builds the full and severe-only variants from a single fetch.
// Alerts are read unfiltered once and the severe filter is applied locally.
func (s *Service) Worldviews(ctx context.Context) (all, severe Worldview) {
	if s.offline {
		now := s.clock.Now().UTC()
		all, severe = SyntheticWorldview(false), SyntheticWorldview(true)
		all.GeneratedAt, severe.GeneratedAt = now, now
		return all, severe
	}

	c := s.collect(ctx, nil)
	return s.assemble(c, false, nil), s.assemble(c, true, s.severe)
}

// collected is the raw outcome of one worldview fetch batch.
type collected struct {
	start   time.Time
	results fetch.Results
	diags   []fetch.Result
}

func (s *Service) collect(ctx context.Context, keep SeverePredicate) collected {
	start := s.clock.Now()

	var tasks []fetch.Task
	for _, r := range s.regions {
		tasks = append(tasks, s.regionTasks(r, keep)...)
	}
	results, diags := s.coordinator.FetchAll(ctx, tasks)
	return collected{start: start, results: results, diags: diags}
}

// assemble aggregates a fetch batch; filter, when set, is applied to the
// region alerts before grouping.
func (s *Service) assemble(c collected, severeOnly bool, filter SeverePredicate) Worldview {
	wv := Worldview{
		GeneratedAt: s.clock.Now().UTC(),
		Meta: WorldviewMeta{
			Samples:    make(map[string]int, len(s.regions)),
			Sources:    s.sources(),
			SevereOnly: severeOnly,
		},
	}

	for _, r := range s.regions {
		observations := s.observations(c.results, r)
		alerts, _ := fetch.Value[[]Alert](c.results, alertTaskName(r.Key))
		alerts = FilterAlerts(alerts, filter)

		wv.Regions = append(wv.Regions, BuildRegionView(r.Key, r.Name, observations, alerts))
		wv.Meta.Samples[r.Key] = len(observations)

		s.logger.Debug("worldview region aggregated",
			"region", r.Key, "samples", len(observations), "alerts", len(alerts), "severe_only", severeOnly)
	}

	for _, d := range c.diags {
		wv.Meta.Fetches = append(wv.Meta.Fetches, FetchDiagnostic{
			Name:      d.Name,
			ElapsedMS: float64(d.Elapsed) / float64(time.Millisecond),
			Succeeded: d.Succeeded,
			Detail:    d.Detail,
		})
	}
	wv.Meta.FetchMS = s.clock.Since(c.start).Milliseconds()
	return wv
}

// observations collects a region's samples from either its batch task or
// its per-point tasks.
func (s *Service) observations(results fetch.Results, r Region) []Observation {
	if batch, ok := fetch.Value[[]Observation](results, samplesTaskName(r.Key)); ok {
		return batch
	}
	var out []Observation
	for i := range r.Samples {
		if obs, ok := fetch.Value[Observation](results, sampleTaskName(r.Key, i)); ok {
			out = append(out, obs)
		}
	}
	return out
}

// regionTasks reads a region's samples in one task when the sampler supports
// batching, so a region costs a single upstream request and a single
// rate-limit token.
func (s *Service) regionTasks(r Region, keep SeverePredicate) []fetch.Task {
	tasks := make([]fetch.Task, 0, len(r.Samples)+1)
	if batcher, ok := s.sampler.(BatchSampler); ok && len(r.Samples) > 0 {
		points := r.Samples
		tasks = append(tasks, fetch.Task{
			Name:    samplesTaskName(r.Key),
			Timeout: s.sampleTimeout,
			Run: func(ctx context.Context) (any, error) {
				return batcher.SampleBatch(ctx, points, s.units)
			},
		})
	} else if s.sampler != nil {
		for i, at := range r.Samples {
			tasks = append(tasks, fetch.Task{
				Name:    sampleTaskName(r.Key, i),
				Timeout: s.sampleTimeout,
				Run: func(ctx context.Context) (any, error) {
					return s.sampler.Sample(ctx, at, s.units)
				},
			})
		}
	}
	if r.Alerts != nil {
		tasks = append(tasks, fetch.Task{
			Name:    alertTaskName(r.Key),
			Timeout: s.alertTimeout,
			Run: func(ctx context.Context) (any, error) {
				return r.Alerts.RegionAlerts(ctx, keep)
			},
		})
	}
	return tasks
}

func (s *Service) sources() []string {
	var out []string
	if s.sampler != nil {
		out = append(out, s.sampler.Name())
	}
	seen := make(map[string]bool)
	for _, r := range s.regions {
		if r.Alerts == nil || seen[r.Alerts.Name()] {
			continue
		}
		seen[r.Alerts.Name()] = true
		out = append(out, r.Alerts.Name())
	}
	return out
}

func sampleTaskName(region string, i int) string {
	return fmt.Sprintf("%s:sample:%d", region, i)
}

func samplesTaskName(region string) string {
	return region + ":samples"
}

func alertTaskName(region string) string {
	return region + ":alerts"
}
