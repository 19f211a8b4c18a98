package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Parser     ParserConfig     `yaml:"parser" mapstructure:"parser"`
	Validate   ValidateConfig   `yaml:"validate" mapstructure:"validate"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Automation AutomationConfig `yaml:"automation" mapstructure:"automation"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CatalogConfig holds the remote catalog API settings.
type CatalogConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	BasicToken  string  `yaml:"basic_token" mapstructure:"basic_token"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	ListLimit   int     `yaml:"list_limit" mapstructure:"list_limit"`
}

// ExtractConfig configures pricelist text extraction.
type ExtractConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	AINormalize   bool   `yaml:"ai_normalize" mapstructure:"ai_normalize"`
	AnthropicKey  string `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	AIModel       string `yaml:"ai_model" mapstructure:"ai_model"`
}

// ParserConfig tunes the pricelist record parser.
type ParserConfig struct {
	MinViableCount int `yaml:"min_viable_count" mapstructure:"min_viable_count"`
	Neighborhood   int `yaml:"neighborhood" mapstructure:"neighborhood"`
}

// ValidateConfig tunes record validation.
type ValidateConfig struct {
	MinNameLength int     `yaml:"min_name_length" mapstructure:"min_name_length"`
	MinPrice      float64 `yaml:"min_price" mapstructure:"min_price"`
}

// ReconcileConfig tunes the reconciliation engine and orchestrator.
type ReconcileConfig struct {
	MatchThreshold        float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
	PriceTolerancePercent float64 `yaml:"price_tolerance_percent" mapstructure:"price_tolerance_percent"`
	RequestDelayMs        int     `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	FastDelayMs           int     `yaml:"fast_delay_ms" mapstructure:"fast_delay_ms"`
	FastSampleSize        int     `yaml:"fast_sample_size" mapstructure:"fast_sample_size"`
	CacheTTLMinutes       int     `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// AutomationConfig tunes the downstream product-creation step.
type AutomationConfig struct {
	RequestDelayMs int  `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	DryRun         bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// FetchConfig configures remote pricelist downloads.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// StoreConfig configures the job/result store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BatchConfig configures multi-file processing.
type BatchConfig struct {
	MaxConcurrentFiles int `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.base_url", "https://store.example.com")
	v.SetDefault("catalog.timeout_secs", 30)
	v.SetDefault("catalog.rate_per_sec", 5.0)
	v.SetDefault("catalog.list_limit", 1000)
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("extract.ai_normalize", false)
	v.SetDefault("extract.ai_model", "claude-haiku-4-5-20251001")
	v.SetDefault("parser.min_viable_count", 5)
	v.SetDefault("parser.neighborhood", 3)
	v.SetDefault("validate.min_name_length", 3)
	v.SetDefault("validate.min_price", 1.0)
	v.SetDefault("reconcile.match_threshold", 0.7)
	v.SetDefault("reconcile.price_tolerance_percent", 5.0)
	v.SetDefault("reconcile.request_delay_ms", 200)
	v.SetDefault("reconcile.fast_delay_ms", 50)
	v.SetDefault("reconcile.fast_sample_size", 10)
	v.SetDefault("reconcile.cache_ttl_minutes", 30)
	v.SetDefault("automation.request_delay_ms", 1000)
	v.SetDefault("automation.batch_size", 10)
	v.SetDefault("automation.dry_run", false)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.user_agent", "pricesync/1.0")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "pricesync.db")
	v.SetDefault("batch.max_concurrent_files", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
