// Package app wires configuration into the runtime object graph.
package app

import (
	"log/slog"
	"net/http"

	"github.com/i474232898/wx-briefing/internal/briefing"
	"github.com/i474232898/wx-briefing/internal/config"
	"github.com/i474232898/wx-briefing/internal/fetch"
	"github.com/i474232898/wx-briefing/internal/forecaster"
	"github.com/i474232898/wx-briefing/internal/llm"
	"github.com/i474232898/wx-briefing/internal/observability"
	"github.com/i474232898/wx-briefing/internal/ratelimit"
	"github.com/i474232898/wx-briefing/internal/state"
	"github.com/i474232898/wx-briefing/internal/weather"
	"github.com/i474232898/wx-briefing/internal/weather/providers"
)

// App holds the long-lived components built from one configuration.
type App struct {
	Config     *config.AppConfig
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	State      *state.FileStore
	Forecaster *forecaster.Forecaster
	Worldview  *weather.Service
	Briefing   *briefing.Service
}

// New builds the application. Providers without credentials are left out of
// the chain.
func New(cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := observability.NewMetrics()
	units := weather.Units(cfg.Units)

	// Shared HTTP client for outbound data-source calls.
	fetchClient := &http.Client{Timeout: cfg.Fetch.HTTPTimeout.Std()}
	limits := ratelimit.NewRegistry(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	client := providers.NewClient(fetchClient, limits, cfg.Offline, logger.With("component", "providers"))

	openMeteo := providers.NewOpenMeteo(client, providers.OpenMeteoEndpoints{})
	nws := providers.NewNWS(client, "")
	meteoAlarm := providers.NewMeteoAlarm(client, cfg.MeteoAlarmFeeds)

	coordinator := fetch.NewCoordinator(
		fetch.WithConcurrency(cfg.Fetch.Concurrency),
		fetch.WithDefaultTimeout(cfg.Fetch.Timeout.Std()),
		fetch.WithObserver(metrics),
		fetch.WithLogger(logger.With("component", "fetch")),
	)

	worldview := weather.NewService(openMeteo, weather.DefaultRegions(nws, meteoAlarm), coordinator,
		weather.WithOffline(cfg.Offline),
		weather.WithUnits(units),
		weather.WithServiceLogger(logger.With("component", "worldview")),
	)

	chain, err := buildChain(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	fc := forecaster.New(chain,
		forecaster.WithOffline(cfg.Offline),
		forecaster.WithStyle(cfg.Style, cfg.Persona),
		forecaster.WithLogger(logger.With("component", "forecaster")),
		forecaster.WithFallbackObserver(metrics),
	)

	st := state.NewFileStore(cfg.StateDirOrDefault(state.DefaultDir()), cfg.PrivacyMode)

	svc := briefing.New(
		briefing.Sources{
			Geocoder:    openMeteo,
			Conditions:  openMeteo,
			Profile:     openMeteo,
			PointAlerts: nws,
		},
		worldview, fc, coordinator, st,
		briefing.WithUnits(units),
		briefing.WithTrustTools(cfg.TrustTools),
		briefing.WithStyle(cfg.Style, cfg.Persona),
		briefing.WithOffline(cfg.Offline),
		briefing.WithFetchTimeout(cfg.Fetch.Timeout.Std()),
		briefing.WithLogger(logger.With("component", "briefing")),
		briefing.WithWorldviewObserver(metrics),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		State:      st,
		Forecaster: fc,
		Worldview:  worldview,
		Briefing:   svc,
	}, nil
}

// buildChain returns OpenRouter then OpenAI, each only when its key is set.
// Only the first configured OpenRouter model is used.
func buildChain(cfg *config.AppConfig, metrics *observability.Metrics, logger *slog.Logger) ([]llm.Provider, error) {
	retry := llm.RetryPolicy{
		MaxAttempts:     cfg.AI.Retries,
		InitialInterval: cfg.AI.Backoff.Std(),
		Multiplier:      cfg.AI.BackoffMultiplier,
		AttemptTimeout:  cfg.AI.Timeout.Std(),
	}
	aiClient := &http.Client{Timeout: cfg.AI.Timeout.Std()}
	opts := []llm.ProviderOption{
		llm.WithAttemptObserver(metrics),
		llm.WithLogger(logger.With("component", "llm")),
	}

	var chain []llm.Provider
	if cfg.OpenRouter.APIKey != "" {
		p, err := llm.NewOpenRouter(aiClient, llm.OpenRouterConfig{
			APIKey:      cfg.OpenRouter.APIKey,
			BaseURL:     cfg.OpenRouter.BaseURL,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Referer:     cfg.OpenRouter.Referer,
			Title:       cfg.OpenRouter.Title,
			Retry:       retry,
		}, opts...)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	} else if !cfg.Offline {
		logger.Warn("OPENROUTER_API_KEY not set; primary AI provider disabled")
	}

	if cfg.OpenAI.APIKey != "" {
		p, err := llm.NewOpenAI(aiClient, llm.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Retry:       retry,
		}, opts...)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	}
	return chain, nil
}
