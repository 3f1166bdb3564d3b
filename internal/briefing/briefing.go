// Package briefing resolves CLI and HTTP requests into feature packs and runs
// them through the forecaster.
package briefing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/wx-briefing/internal/featurepack"
	"github.com/i474232898/wx-briefing/internal/fetch"
	"github.com/i474232898/wx-briefing/internal/forecaster"
	"github.com/i474232898/wx-briefing/internal/state"
	"github.com/i474232898/wx-briefing/internal/weather"
)

// Command names, also used as the saved state's command.
const (
	CommandQuestion = "question"
	CommandForecast = "forecast"
	CommandRisk     = "risk"
	CommandAlerts   = "alerts"
	CommandExplain  = "explain"
)

// Fetch task names.
const (
	TaskPointContext = "point_context"
	TaskQuickObs     = "quick_obs"
	TaskQuickProfile = "quick_profile"
	TaskQuickAlerts  = "quick_alerts"
)

// ErrNoPriorQuery is returned by Explain when no state was saved.
var ErrNoPriorQuery = errors.New("no prior query available; disable privacy mode to enable explain")

// Sources are the point lookups a briefing may use. Any of them may be nil.
type Sources struct {
	Geocoder    weather.Geocoder
	Conditions  weather.ConditionsSource
	Profile     weather.ProfileSource
	PointAlerts weather.PointAlertSource
}

// StateStore persists the last request for explain.
type StateStore interface {
	Save(p state.Payload) error
	Load() (*state.Payload, error)
}

// WorldviewObserver is told about every worldview built.
type WorldviewObserver interface {
	ObserveWorldview(offline bool)
}

// Result is the outcome of a single briefing.
type Result struct {
	ID          uuid.UUID            `json:"id"`
	Command     string               `json:"command"`
	Query       string               `json:"query"`
	FeaturePack *featurepack.Pack    `json:"feature_pack"`
	Response    *forecaster.Response `json:"response"`
	Fetches     []fetch.Result       `json:"fetches,omitempty"`
	Elapsed     time.Duration        `json:"elapsed"`
}

// ExplainResult is the outcome of an explain request.
type ExplainResult struct {
	Command     string               `json:"command"`
	Question    string               `json:"question"`
	Mode        forecaster.Mode      `json:"mode"`
	Text        string               `json:"text"`
	Meta        map[string]any       `json:"meta"`
	Response    *forecaster.Response `json:"response"`
	FeaturePack *featurepack.Pack    `json:"feature_pack"`
}

// ForecastParams are the inputs of a forecast request.
type ForecastParams struct {
	Place   string
	When    string
	Horizon string
	Focus   string
	Verbose bool
}

// Option configures a Service.
type Option func(*Service)

// WithUnits sets the units used for the pack and quick observations.
func WithUnits(u weather.Units) Option {
	return func(s *Service) { s.units = u }
}

// WithTrustTools enables the quick fetches beyond place resolution.
func WithTrustTools(on bool) Option {
	return func(s *Service) { s.trustTools = on }
}

// WithStyle records style and persona in the saved state.
func WithStyle(style, persona string) Option {
	return func(s *Service) {
		s.style = style
		s.persona = persona
	}
}

// WithOffline marks worldviews as offline for the observer.
func WithOffline(offline bool) Option {
	return func(s *Service) { s.offline = offline }
}

// WithFetchTimeout sets the per-task deadline for point lookups.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithWorldviewObserver(o WorldviewObserver) Option {
	return func(s *Service) { s.observer = o }
}

// Service is the orchestrator behind every command.
type Service struct {
	sources     Sources
	worldview   *weather.Service
	forecaster  *forecaster.Forecaster
	coordinator *fetch.Coordinator
	state       StateStore

	units        weather.Units
	trustTools   bool
	offline      bool
	style        string
	persona      string
	fetchTimeout time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
	observer     WorldviewObserver
}

// New creates a Service. store may be nil, which disables explain.
func New(src Sources, worldview *weather.Service, fc *forecaster.Forecaster, coordinator *fetch.Coordinator, store StateStore, opts ...Option) *Service {
	s := &Service{
		sources:      src,
		worldview:    worldview,
		forecaster:   fc,
		coordinator:  coordinator,
		state:        store,
		units:        weather.UnitsImperial,
		style:        forecaster.DefaultStyle,
		persona:      forecaster.DefaultPersona,
		fetchTimeout: fetch.DefaultTimeout,
		clock:        clockwork.NewRealClock(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.coordinator == nil {
		s.coordinator = fetch.NewCoordinator(fetch.WithLogger(s.logger))
	}
	return s
}

// Question answers a free-form question from the base pack alone.
func (s *Service) Question(ctx context.Context, question string, verbose bool) *Result {
	start := s.clock.Now()
	b := featurepack.NewBuilder(s.units, s.trustTools).
		UseCase(CommandQuestion, verboseTag(verbose))
	pack := b.Build()

	resp := s.forecaster.Generate(ctx, forecaster.Request{
		Query:   question,
		Intent:  CommandQuestion,
		Pack:    pack,
		Verbose: verbose,
	})

	res := s.result(CommandQuestion, question, pack, resp, nil, start)
	s.persist(ctx, res.ID, CommandQuestion, question, pack)
	return res
}

// Forecast resolves the place, builds the window and, with trust tools on,
// pulls the quick observation, profile and alerts.
func (s *Service) Forecast(ctx context.Context, p ForecastParams) *Result {
	start := s.clock.Now()
	b := featurepack.NewBuilder(s.units, s.trustTools)

	place, diags := s.resolve(ctx, p.Place)
	b.Place(place)

	tz := ""
	if place != nil {
		tz = place.Tz
	}
	window := featurepack.BuildWindow(s.clock.Now(), p.When, p.Horizon, tz)
	b.Window(&window)

	if place != nil && s.trustTools {
		results, quick := s.coordinator.FetchAll(ctx, s.quickTasks(place.Coordinate(), true))
		diags = append(diags, quick...)
		s.addQuick(b, results)
	}

	constraints := []string{}
	if p.Focus != "" {
		constraints = append(constraints, "focus:"+p.Focus)
	}
	constraints = append(constraints, verboseTag(p.Verbose))
	pack := b.UseCase(CommandForecast, constraints...).Build()

	resp := s.forecaster.Generate(ctx, forecaster.Request{
		Query:   forecastQuery(p),
		Intent:  CommandForecast,
		Pack:    pack,
		Verbose: p.Verbose,
	})

	res := s.result(CommandForecast, p.Place, pack, resp, diags, start)
	s.persist(ctx, res.ID, CommandForecast, resp.PromptSummary, pack)
	return res
}

// Risk resolves the place and, with trust tools on, pulls active alerts.
func (s *Service) Risk(ctx context.Context, place string, hazards []string, verbose bool) *Result {
	start := s.clock.Now()
	b := featurepack.NewBuilder(s.units, s.trustTools)

	resolved, diags := s.resolve(ctx, place)
	b.Place(resolved)

	if resolved != nil && s.trustTools {
		results, quick := s.coordinator.FetchAll(ctx, s.quickTasks(resolved.Coordinate(), false))
		diags = append(diags, quick...)
		s.addQuick(b, results)
	}

	constraints := []string{}
	if len(hazards) > 0 {
		constraints = append(constraints, "hazards:"+joinComma(hazards))
	}
	constraints = append(constraints, verboseTag(verbose))
	pack := b.UseCase(CommandRisk, constraints...).Build()

	resp := s.forecaster.Generate(ctx, forecaster.Request{
		Query:   riskQuery(place, hazards),
		Intent:  CommandRisk,
		Pack:    pack,
		Verbose: verbose,
	})

	res := s.result(CommandRisk, place, pack, resp, diags, start)
	s.persist(ctx, res.ID, CommandRisk, resp.PromptSummary, pack)
	return res
}

// Alerts lists active alerts for a place. Alerts are fetched whether or not
// trust tools are on. With ai set and alerts present the forecaster triages
// them; otherwise a manual response is built from the feed. Alerts are not
// saved for explain.
func (s *Service) Alerts(ctx context.Context, place string, ai, verbose bool) *Result {
	start := s.clock.Now()
	b := featurepack.NewBuilder(s.units, s.trustTools)

	resolved, diags := s.resolve(ctx, place)
	b.Place(resolved)

	var alerts []weather.Alert
	if resolved != nil && s.sources.PointAlerts != nil {
		at := resolved.Coordinate()
		results, quick := s.coordinator.FetchAll(ctx, []fetch.Task{{
			Name:    TaskQuickAlerts,
			Timeout: s.fetchTimeout,
			Run: func(ctx context.Context) (any, error) {
				return s.sources.PointAlerts.PointAlerts(ctx, at)
			},
		}})
		diags = append(diags, quick...)
		alerts, _ = fetch.Value[[]weather.Alert](results, TaskQuickAlerts)
	}
	b.Add(featurepack.SectionAlertsQuick, alerts)
	pack := b.Build()

	var resp *forecaster.Response
	if ai && len(alerts) > 0 {
		resp = s.forecaster.Generate(ctx, forecaster.Request{
			Query:   "Alert triage for " + place + ".",
			Intent:  CommandAlerts,
			Pack:    pack,
			Verbose: verbose,
		})
	} else {
		resp = manualAlertsResponse(place, alerts)
	}
	return s.result(CommandAlerts, place, pack, resp, diags, start)
}

// Explain reruns the chain in explain mode over the last saved request.
func (s *Service) Explain(ctx context.Context) (*ExplainResult, error) {
	if s.state == nil {
		return nil, ErrNoPriorQuery
	}
	saved, err := s.state.Load()
	if errors.Is(err, state.ErrNoState) {
		return nil, ErrNoPriorQuery
	}
	if err != nil {
		return nil, err
	}

	command := saved.Command
	if command == "" {
		command = CommandQuestion
	}
	question := saved.Question
	if question == "" {
		question = "Explain the last forecast"
	}
	pack := saved.FeaturePack
	if pack == nil {
		pack = featurepack.New()
	}

	out := s.forecaster.Explain(ctx, question, pack, command)
	return &ExplainResult{
		Command:     command,
		Question:    question,
		Mode:        out.Mode,
		Text:        out.Text,
		Meta:        out.Meta,
		Response:    out.Response,
		FeaturePack: pack,
	}, nil
}

// Worldview builds the multi-region overview.
func (s *Service) Worldview(ctx context.Context, severeOnly bool) weather.Worldview {
	wv := s.worldview.Worldview(ctx, severeOnly)
	if s.observer != nil {
		s.observer.ObserveWorldview(s.offline)
	}
	return wv
}

// Worldviews builds the full and severe-only overviews from one fetch.
func (s *Service) Worldviews(ctx context.Context) (all, severe weather.Worldview) {
	all, severe = s.worldview.Worldviews(ctx)
	if s.observer != nil {
		s.observer.ObserveWorldview(s.offline)
	}
	return all, severe
}

// resolve runs the point_context stage on its own; the quick fetches depend
// on its coordinates.
func (s *Service) resolve(ctx context.Context, query string) (*weather.PlaceContext, []fetch.Result) {
	if s.sources.Geocoder == nil || query == "" {
		return nil, nil
	}
	results, diags := s.coordinator.FetchAll(ctx, []fetch.Task{{
		Name:    TaskPointContext,
		Timeout: s.fetchTimeout,
		Run: func(ctx context.Context) (any, error) {
			return s.sources.Geocoder.Geocode(ctx, query)
		},
	}})
	place, ok := fetch.Value[weather.PlaceContext](results, TaskPointContext)
	if !ok {
		return nil, diags
	}
	return &place, diags
}

func (s *Service) quickTasks(at weather.Coordinate, full bool) []fetch.Task {
	var tasks []fetch.Task
	if full && s.sources.Conditions != nil {
		tasks = append(tasks, fetch.Task{
			Name:    TaskQuickObs,
			Timeout: s.fetchTimeout,
			Run: func(ctx context.Context) (any, error) {
				return s.sources.Conditions.Current(ctx, at, s.units)
			},
		})
	}
	if full && s.sources.Profile != nil {
		tasks = append(tasks, fetch.Task{
			Name:    TaskQuickProfile,
			Timeout: s.fetchTimeout,
			Run: func(ctx context.Context) (any, error) {
				return s.sources.Profile.Profile(ctx, at)
			},
		})
	}
	if s.sources.PointAlerts != nil {
		tasks = append(tasks, fetch.Task{
			Name:    TaskQuickAlerts,
			Timeout: s.fetchTimeout,
			Run: func(ctx context.Context) (any, error) {
				return s.sources.PointAlerts.PointAlerts(ctx, at)
			},
		})
	}
	return tasks
}

func (s *Service) addQuick(b *featurepack.Builder, results fetch.Results) {
	if obs, ok := fetch.Value[weather.CurrentConditions](results, TaskQuickObs); ok {
		b.Quick(featurepack.SectionObsQuick, obs)
	}
	if prof, ok := fetch.Value[weather.Profile](results, TaskQuickProfile); ok {
		b.Quick(featurepack.SectionProfile, prof)
	}
	if alerts, ok := fetch.Value[[]weather.Alert](results, TaskQuickAlerts); ok {
		b.Quick(featurepack.SectionAlertsQuick, alerts)
	}
}

func (s *Service) result(command, query string, pack *featurepack.Pack, resp *forecaster.Response, diags []fetch.Result, start time.Time) *Result {
	return &Result{
		ID:          uuid.New(),
		Command:     command,
		Query:       query,
		FeaturePack: pack,
		Response:    resp,
		Fetches:     diags,
		Elapsed:     s.clock.Since(start),
	}
}

// persist is best effort: a failed save never fails the command.
func (s *Service) persist(ctx context.Context, id uuid.UUID, command, question string, pack *featurepack.Pack) {
	if s.state == nil {
		return
	}
	err := s.state.Save(state.Payload{
		ID:          id,
		Command:     command,
		Question:    question,
		FeaturePack: pack,
		Style:       s.style,
		Persona:     s.persona,
		Timestamp:   s.clock.Now().UTC(),
	})
	if err != nil {
		s.logger.DebugContext(ctx, "saving state failed", "command", command, "error", err)
	}
}
