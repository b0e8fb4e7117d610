package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// RegistryConfig holds Bolagsverket API credentials and extraction tuning.
type RegistryConfig struct {
	ClientID           string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret       string `yaml:"client_secret" mapstructure:"client_secret"`
	TokenURL           string `yaml:"token_url" mapstructure:"token_url"`
	APIURL             string `yaml:"api_url" mapstructure:"api_url"`
	Scope              string `yaml:"scope" mapstructure:"scope"`
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
	WorkerCount        int    `yaml:"worker_count" mapstructure:"worker_count"`
	RequestDelayMS     int    `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	TokenMarginSecs    int    `yaml:"token_margin_secs" mapstructure:"token_margin_secs"`
}

// RequestDelay returns the inter-request courtesy delay per worker.
func (c RegistryConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// RequestTimeout returns the per-request timeout.
func (c RegistryConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// TokenMargin returns the safety margin subtracted from credential lifetimes.
func (c RegistryConfig) TokenMargin() time.Duration {
	return time.Duration(c.TokenMarginSecs) * time.Second
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// InputConfig locates the pipeline input files and names the reference
// dataset columns to merge.
type InputConfig struct {
	IDFile         string `yaml:"id_file" mapstructure:"id_file"`
	ReferenceFile  string `yaml:"reference_file" mapstructure:"reference_file"`
	IDColumn       string `yaml:"id_column" mapstructure:"id_column"`
	NameColumn     string `yaml:"name_column" mapstructure:"name_column"`
	CategoryColumn string `yaml:"category_column" mapstructure:"category_column"`
	LastRunFile    string `yaml:"last_run_file" mapstructure:"last_run_file"`
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
	v.SetEnvPrefix("REGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	// Credentials usually arrive via REGISTRY_REGISTRY_CLIENT_ID and
	// REGISTRY_REGISTRY_CLIENT_SECRET; empty defaults make viper bind them.
	v.SetDefault("registry.client_id", "")
	v.SetDefault("registry.client_secret", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("registry.token_url", "https://portal.api.bolagsverket.se/oauth2/token")
	v.SetDefault("registry.api_url", "https://gw.api.bolagsverket.se/vardefulla-datamangder/v1/organisationer")
	v.SetDefault("registry.scope", "vardefulla-datamangder:read vardefulla-datamangder:ping")
	v.SetDefault("registry.user_agent", "registry-cli/1.0")
	v.SetDefault("registry.worker_count", 12)
	v.SetDefault("registry.request_delay_ms", 20)
	v.SetDefault("registry.request_timeout_secs", 15)
	v.SetDefault("registry.token_margin_secs", 300)
	v.SetDefault("input.id_file", "bolagsverket_corporate_ids.txt")
	v.SetDefault("input.reference_file", "fi_nordic_cleaned_utf8_bom.csv")
	v.SetDefault("input.id_column", "CorporateID_Clean")
	v.SetDefault("input.name_column", "Name")
	v.SetDefault("input.category_column", "Category")
	v.SetDefault("input.last_run_file", "etl_last_run.json")

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

// Validate checks that the configuration required by the given command mode
// is present. Modes: "run" (full pipeline), "init" (migrations only),
// "runs" (audit listing).
func (c *Config) Validate(mode string) error {
	var missing []string

	needDB := func() {
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	}

	switch mode {
	case "run":
		needDB()
		if c.Registry.ClientID == "" {
			missing = append(missing, "registry.client_id is required")
		}
		if c.Registry.ClientSecret == "" {
			missing = append(missing, "registry.client_secret is required")
		}
		if c.Registry.WorkerCount < 1 {
			missing = append(missing, "registry.worker_count must be >= 1")
		}
		if c.Registry.RequestTimeoutSecs < 1 {
			missing = append(missing, "registry.request_timeout_secs must be >= 1")
		}
		if c.Input.IDFile == "" {
			missing = append(missing, "input.id_file is required")
		}
		if c.Input.ReferenceFile == "" {
			missing = append(missing, "input.reference_file is required")
		}
		if c.Input.IDColumn == "" {
			missing = append(missing, "input.id_column is required")
		}
	case "init", "runs":
		needDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New(fmt.Sprintf("config: invalid for %s mode:\n  %s", mode, strings.Join(missing, "\n  ")))
	}
	return nil
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
