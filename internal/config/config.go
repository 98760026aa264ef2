package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Inference  InferenceConfig  `yaml:"inference" mapstructure:"inference"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Brave      BraveConfig      `yaml:"brave" mapstructure:"brave"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// InferenceConfig selects the language-model provider.
type InferenceConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ResearchConfig configures the web-search provider used for research and discovery.
type ResearchConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxResults  int    `yaml:"max_results" mapstructure:"max_results"`
	MaxChars    int    `yaml:"max_chars" mapstructure:"max_chars"`
	ExtraTerms  string `yaml:"extra_terms" mapstructure:"extra_terms"`
	Disabled    bool   `yaml:"disabled" mapstructure:"disabled"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Language string `yaml:"language" mapstructure:"language"`
}

// FirecrawlConfig holds Firecrawl scrape API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScrapeConfig configures the site fetch.
type ScrapeConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"` // "http", "jina" or "firecrawl"
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxTextChars int    `yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// EnrichConfig configures prompt construction.
type EnrichConfig struct {
	ProfilePath string `yaml:"profile_path" mapstructure:"profile_path"`
}

// DiscoveryConfig configures lead discovery and the daily workflow.
type DiscoveryConfig struct {
	DefaultQuery  string   `yaml:"default_query" mapstructure:"default_query"`
	ResultCount   int      `yaml:"result_count" mapstructure:"result_count"`
	Niches        []string `yaml:"niches" mapstructure:"niches"`
	WorkflowLimit int      `yaml:"workflow_limit" mapstructure:"workflow_limit"`
}

// ScheduleConfig configures the in-process workflow scheduler.
type ScheduleConfig struct {
	Cron string `yaml:"cron" mapstructure:"cron"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CronSecret     string   `yaml:"cron_secret" mapstructure:"cron_secret"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures workflow alerts. Alerts are off while
// WebhookURL is empty.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultNiches are the search queries the daily workflow rotates through.
var DefaultNiches = []string{
	"empresas constructoras colombia proyectos nuevos",
	"empresas de logistica y transporte bogota",
	"exportadoras agricolas colombia",
	"agencias de marketing digital bogota",
	"software factories colombia",
}

// Load reads configuration from .env files, config file and environment.
func Load() (*Config, error) {
	if err := loadDotEnv(".env", ".env.local"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly so Unmarshal sees them.
	// Secrets also accept the unprefixed names used by existing deployments.
	for key, aliases := range map[string][]string{
		"store.database_url":     {"DATABASE_URL"},
		"anthropic.key":          {"ANTHROPIC_API_KEY"},
		"perplexity.key":         {"PERPLEXITY_API_KEY"},
		"gemini.key":             {"GEMINI_API_KEY"},
		"brave.key":              {"BRAVE_API_KEY"},
		"jina.key":               {"JINA_API_KEY"},
		"firecrawl.key":          {"FIRECRAWL_API_KEY"},
		"google.key":             {"GOOGLE_PLACES_API_KEY"},
		"server.cron_secret":     {"CRON_SECRET"},
		"monitoring.webhook_url": {"ALERT_WEBHOOK_URL"},
		"enrich.profile_path":    nil,
		"research.extra_terms":   nil,
		"research.disabled":      nil,
	} {
		envName := "LEADGEN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, envName}, aliases...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("inference.provider", "anthropic")
	v.SetDefault("inference.timeout_secs", 60)
	v.SetDefault("inference.max_tokens", 2048)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("research.provider", "brave")
	v.SetDefault("research.timeout_secs", 10)
	v.SetDefault("research.max_results", 5)
	v.SetDefault("research.max_chars", 1500)
	v.SetDefault("brave.base_url", "https://api.search.brave.com/res/v1")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.language", "es")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("scrape.provider", "http")
	v.SetDefault("scrape.timeout_secs", 12)
	v.SetDefault("scrape.max_body_bytes", 2*1024*1024)
	v.SetDefault("scrape.max_text_chars", 5000)
	v.SetDefault("discovery.default_query", "pymes en colombia que necesiten automatizacion")
	v.SetDefault("discovery.result_count", 5)
	v.SetDefault("discovery.niches", DefaultNiches)
	v.SetDefault("discovery.workflow_limit", 4)
	v.SetDefault("schedule.cron", "0 8 * * *")
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// loadDotEnv loads the given .env files into the process environment when
// present. Variables already set in the environment are not overridden.
func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return eris.Wrapf(err, "config: load %s", p)
		}
	}
	return nil
}

// Validate checks that the settings required by the given command mode are
// present. Modes: "enrich", "discover", "serve", "schedule", "store".
func (c *Config) Validate(mode string) error {
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver (LEADGEN_STORE_DATABASE_URL)")
	}

	switch mode {
	case "store":
		return nil
	case "enrich", "serve", "schedule":
		switch c.Inference.Provider {
		case "anthropic", "perplexity", "gemini":
		default:
			return eris.Errorf("config: unsupported inference provider %q", c.Inference.Provider)
		}
		switch c.Scrape.Provider {
		case "", "http":
		case "jina":
			if c.Jina.Key == "" {
				return eris.New("config: jina.key is required when scrape.provider is jina")
			}
		case "firecrawl":
			if c.Firecrawl.Key == "" {
				return eris.New("config: firecrawl.key is required when scrape.provider is firecrawl")
			}
		default:
			return eris.Errorf("config: unsupported scrape provider %q", c.Scrape.Provider)
		}
		fallthrough
	case "discover":
		switch c.Research.Provider {
		case "brave", "jina", "google":
		default:
			return eris.Errorf("config: unsupported research provider %q", c.Research.Provider)
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if mode == "schedule" && strings.TrimSpace(c.Schedule.Cron) == "" {
		return eris.New("config: schedule.cron is required")
	}
	return nil
}

// InferenceKey returns the credential for the selected inference provider.
func (c *Config) InferenceKey() string {
	switch c.Inference.Provider {
	case "perplexity":
		return c.Perplexity.Key
	case "gemini":
		return c.Gemini.Key
	default:
		return c.Anthropic.Key
	}
}

// SearchKey returns the credential for the selected search provider.
func (c *Config) SearchKey() string {
	switch c.Research.Provider {
	case "jina":
		return c.Jina.Key
	case "google":
		return c.Google.Key
	default:
		return c.Brave.Key
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
