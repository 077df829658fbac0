package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultSheetURL is the public CSV export of the ticket sales sheet.
const DefaultSheetURL = "https://docs.google.com/spreadsheets/d/1hVm1OALKQ244zuJBQV0SsQT08A2_JTDlPytUNULRofA/export?format=csv&gid=0"

// Config holds the full application configuration.
type Config struct {
	Sheet  SheetConfig  `yaml:"sheet" mapstructure:"sheet"`
	Ads    AdsConfig    `yaml:"ads" mapstructure:"ads"`
	FX     FXConfig     `yaml:"fx" mapstructure:"fx"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SheetConfig configures the ticket sales sheet source.
type SheetConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AdsConfig configures ad report processing.
type AdsConfig struct {
	MaxConcurrentFiles int    `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
	AliasFile          string `yaml:"alias_file" mapstructure:"alias_file"`
}

// FXConfig configures the exchange-rate cache.
type FXConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TTLHours    int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Disabled    bool   `yaml:"disabled" mapstructure:"disabled"`
}

// FetchConfig configures the HTTP transport shared by all downloads.
type FetchConfig struct {
	UserAgent  string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("SHOWFUNNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sheet.url", DefaultSheetURL)
	v.SetDefault("sheet.timeout_secs", 30)
	v.SetDefault("ads.max_concurrent_files", 4)
	v.SetDefault("ads.alias_file", "")
	v.SetDefault("fx.url", "https://open.er-api.com/v6/latest/USD")
	v.SetDefault("fx.ttl_hours", 6)
	v.SetDefault("fx.timeout_secs", 10)
	v.SetDefault("fx.disabled", false)
	v.SetDefault("fetch.user_agent", "showfunnel/1.0")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "showfunnel.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings required by a command mode.
// Modes: "sheet", "ads", "run", "store", "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "sheet", "ads", "run":
	case "store":
		errs = append(errs, c.storeErrors()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Sheet.TimeoutSecs <= 0 {
		errs = append(errs, "sheet.timeout_secs must be > 0")
	}
	if c.Ads.MaxConcurrentFiles < 1 || c.Ads.MaxConcurrentFiles > 32 {
		errs = append(errs, "ads.max_concurrent_files must be between 1 and 32")
	}
	if c.FX.TTLHours <= 0 {
		errs = append(errs, "fx.ttl_hours must be > 0")
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) storeErrors() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
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
