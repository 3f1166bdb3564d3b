package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/i474232898/wx-briefing/internal/common"
)

// DefaultOpenRouterModels is used when a key is set but no model is named.
var DefaultOpenRouterModels = []string{"x-ai/grok-4-fast:free", "openai/gpt-oss-120b:free"}

// Duration is a time.Duration that reads "15m" style strings from TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type OpenRouterConfig struct {
	APIKey  string   `toml:"api_key"`
	BaseURL string   `toml:"base_url" validate:"required,url"`
	Models  []string `toml:"models"`
	Referer string   `toml:"referer"`
	Title   string   `toml:"title"`
}

type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url" validate:"omitempty,url"`
	Model   string `toml:"model" validate:"required"`
}

// AIConfig holds settings shared by every provider in the chain.
type AIConfig struct {
	Model             string   `toml:"model"`
	Temperature       float64  `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int      `toml:"max_tokens" validate:"gt=0"`
	Timeout           Duration `toml:"timeout" validate:"gt=0"`
	Retries           int      `toml:"retries" validate:"gte=1,lte=10"`
	Backoff           Duration `toml:"backoff" validate:"gt=0"`
	BackoffMultiplier float64  `toml:"backoff_multiplier" validate:"gte=1"`
}

type FetchConfig struct {
	Timeout     Duration `toml:"timeout" validate:"gt=0"`
	Concurrency int      `toml:"concurrency" validate:"gte=1,lte=64"`
	HTTPTimeout Duration `toml:"http_timeout" validate:"gt=0"`
}

type RateLimitConfig struct {
	PerMinute int `toml:"per_minute" validate:"gte=1"`
	Burst     int `toml:"burst" validate:"gte=1"`
}

// ServerConfig drives serve mode.
type ServerConfig struct {
	Port              string   `toml:"port" validate:"required,numeric"`
	WorldviewInterval Duration `toml:"worldview_interval" validate:"gt=0"`
	StoreMaxHistory   int      `toml:"store_max_history" validate:"gte=0"` // 0 = unlimited
	StoreMaxAge       Duration `toml:"store_max_age" validate:"gte=0"`     // 0 = unlimited
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// AppConfig is the fully resolved configuration.
type AppConfig struct {
	Offline     bool   `toml:"offline"`
	Units       string `toml:"units" validate:"oneof=imperial metric"`
	Style       string `toml:"style" validate:"required"`
	Persona     string `toml:"persona" validate:"required"`
	TrustTools  bool   `toml:"trust_tools"`
	PrivacyMode bool   `toml:"privacy_mode"`
	StateDir    string `toml:"state_dir"`

	OpenRouter OpenRouterConfig `toml:"openrouter"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	AI         AIConfig         `toml:"ai"`

	Fetch           FetchConfig     `toml:"fetch"`
	RateLimit       RateLimitConfig `toml:"rate_limit"`
	MeteoAlarmFeeds []string        `toml:"meteoalarm_feeds" validate:"dive,url"`

	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`

	// Source is the config file that was read, if any.
	Source string `toml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() *AppConfig {
	return &AppConfig{
		Units:       "imperial",
		Style:       "concise",
		Persona:     "general",
		PrivacyMode: true,
		OpenRouter: OpenRouterConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Title:   "wx",
		},
		OpenAI: OpenAIConfig{Model: "gpt-4o-mini"},
		AI: AIConfig{
			Temperature:       0.2,
			MaxTokens:         900,
			Timeout:           Duration(30 * time.Second),
			Retries:           3,
			Backoff:           Duration(750 * time.Millisecond),
			BackoffMultiplier: 2,
		},
		Fetch: FetchConfig{
			Timeout:     Duration(3 * time.Second),
			Concurrency: 8,
			HTTPTimeout: Duration(10 * time.Second),
		},
		RateLimit: RateLimitConfig{PerMinute: 60, Burst: 10},
		Server: ServerConfig{
			Port:              "8080",
			WorldviewInterval: Duration(15 * time.Minute),
			StoreMaxHistory:   96, // roughly 24h at 15-minute intervals
			StoreMaxAge:       Duration(24 * time.Hour),
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load resolves defaults, then the TOML file, then the environment (after
// reading .env), and validates the result.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.Any("error", err))
	}

	cfg := Defaults()

	path, explicit := filePath()
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		} else {
			cfg.Source = path
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.resolveModels()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// filePath returns WX_CONFIG_FILE when set, else the per-user default.
func filePath() (string, bool) {
	if p := os.Getenv("WX_CONFIG_FILE"); p != "" {
		return p, true
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, "wx", "config.toml"), false
}

func readFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides cfg with every variable that is set.
func applyEnv(cfg *AppConfig, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.boolean("WX_OFFLINE", &cfg.Offline)
	e.str("UNITS", &cfg.Units)
	e.str("WX_STYLE", &cfg.Style)
	e.str("WX_PERSONA", &cfg.Persona)
	e.boolean("WX_TRUST_TOOLS", &cfg.TrustTools)
	e.boolean("PRIVACY_MODE", &cfg.PrivacyMode)
	e.str("WX_STATE_DIR", &cfg.StateDir)

	e.str("OPENROUTER_API_KEY", &cfg.OpenRouter.APIKey)
	e.str("OPENROUTER_BASE_URL", &cfg.OpenRouter.BaseURL)
	e.list("OPENROUTER_MODELS", &cfg.OpenRouter.Models)
	if len(cfg.OpenRouter.Models) == 0 {
		e.list("OPENROUTER_MODEL", &cfg.OpenRouter.Models)
	}
	e.str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	e.str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	e.str("OPENAI_MODEL", &cfg.OpenAI.Model)

	e.str("AI_MODEL", &cfg.AI.Model)
	e.float("AI_TEMPERATURE", &cfg.AI.Temperature)
	e.integer("AI_MAX_TOKENS", &cfg.AI.MaxTokens)
	e.duration("AI_TIMEOUT", &cfg.AI.Timeout)
	e.integer("AI_RETRIES", &cfg.AI.Retries)
	e.duration("AI_BACKOFF", &cfg.AI.Backoff)
	e.float("AI_BACKOFF_MULTIPLIER", &cfg.AI.BackoffMultiplier)

	e.duration("FETCH_TIMEOUT", &cfg.Fetch.Timeout)
	e.integer("FETCH_CONCURRENCY", &cfg.Fetch.Concurrency)
	e.duration("HTTP_TIMEOUT", &cfg.Fetch.HTTPTimeout)
	e.integer("RATE_LIMIT_PER_MINUTE", &cfg.RateLimit.PerMinute)
	e.integer("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)
	e.list("METEOALARM_FEEDS", &cfg.MeteoAlarmFeeds)

	e.duration("WORLDVIEW_INTERVAL", &cfg.Server.WorldviewInterval)
	e.integer("STORE_MAX_HISTORY", &cfg.Server.StoreMaxHistory)
	e.duration("STORE_MAX_AGE", &cfg.Server.StoreMaxAge)
	e.str("PORT", &cfg.Server.Port)

	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(e.errs...)
}

// resolveModels normalises units and picks the effective AI model: AI_MODEL
// wins, then the first configured OpenRouter model.
func (c *AppConfig) resolveModels() {
	c.Units = strings.ToLower(strings.TrimSpace(c.Units))
	if strings.HasPrefix(c.Units, "metric") {
		c.Units = "metric"
	} else if c.Units == "" {
		c.Units = "imperial"
	}

	if len(c.OpenRouter.Models) == 0 && c.AI.Model != "" {
		c.OpenRouter.Models = []string{c.AI.Model}
	}
	if len(c.OpenRouter.Models) == 0 && c.OpenRouter.APIKey != "" {
		c.OpenRouter.Models = append([]string(nil), DefaultOpenRouterModels...)
	}
	if c.AI.Model == "" {
		if len(c.OpenRouter.Models) > 0 {
			c.AI.Model = c.OpenRouter.Models[0]
		} else {
			c.AI.Model = DefaultOpenRouterModels[0]
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Server.WorldviewInterval.Std() < time.Minute {
		return fmt.Errorf("invalid config: worldview interval %s is below 1m", c.Server.WorldviewInterval.Std())
	}
	return nil
}

// StateDirOrDefault returns the configured state dir, or def.
func (c *AppConfig) StateDirOrDefault(def string) string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return def
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		default:
			*dst = false
		}
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*dst = f
	}
}

// duration accepts "750ms" style values, or plain numbers as seconds.
func (e *envReader) duration(key string, dst *Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = Duration(d)
}

func (e *envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		*dst = common.SplitList(v)
	}
}
