// Package config loads rollcorr settings from an optional YAML file, a .env
// file and ROLLCORR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ROLLCORR_ANALYSIS_MAX_WINDOW.
const EnvPrefix = "ROLLCORR"

// Config is the complete application configuration.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Analyze  AnalyzeConfig  `mapstructure:"analyze"`
}

// AnalysisConfig controls rolling window generation.
type AnalysisConfig struct {
	MinTimelineLength int `mapstructure:"min_timeline_length"`
	MaxWindow         int `mapstructure:"max_window"`
	Workers           int `mapstructure:"workers"`
}

// FetchConfig controls Statcast downloads.
type FetchConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	StartYear      int           `mapstructure:"start_year"`
	EndYear        int           `mapstructure:"end_year"`
	StartMonth     int           `mapstructure:"start_month"`
	EndMonth       int           `mapstructure:"end_month"`
	ChunkDays      int           `mapstructure:"chunk_days"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryInitial   time.Duration `mapstructure:"retry_initial"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	CacheDir       string        `mapstructure:"cache_dir"`
	CacheEnabled   bool          `mapstructure:"cache_enabled"`
}

// OutputConfig names the files each stage reads and writes.
type OutputConfig struct {
	Events       string `mapstructure:"events"`
	Rolling      string `mapstructure:"rolling"`
	Correlations string `mapstructure:"correlations"`
	PlotDir      string `mapstructure:"plot_dir"`
	PlotSplit    int    `mapstructure:"plot_split"`
}

// StorageConfig locates the run history database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus textfile written at command end.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// AnalyzeConfig configures the analyze command.
type AnalyzeConfig struct {
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

// Load reads configuration. An empty path uses defaults and the environment
// only. A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-supplied viper, so cobra flags bound to v
// take precedence over file and environment values.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(v, path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unprefixed key used by the Anthropic SDK and the rest of the ecosystem.
	if err := v.BindEnv("analyze.api_key", EnvPrefix+"_ANALYZE_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("analysis.min_timeline_length", 260)
	v.SetDefault("analysis.max_window", 250)
	v.SetDefault("analysis.workers", 0)

	v.SetDefault("fetch.base_url", "https://baseballsavant.mlb.com")
	v.SetDefault("fetch.start_year", 2013)
	v.SetDefault("fetch.end_year", 2023)
	v.SetDefault("fetch.start_month", 3)
	v.SetDefault("fetch.end_month", 10)
	v.SetDefault("fetch.chunk_days", 0)
	v.SetDefault("fetch.timeout", "120s")
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_initial", "5s")
	v.SetDefault("fetch.requests_per_sec", 1.0)
	v.SetDefault("fetch.cache_dir", ".statcast_cache")
	v.SetDefault("fetch.cache_enabled", true)

	v.SetDefault("output.events", "statcast_data.csv")
	v.SetDefault("output.rolling", "rolling_stats.csv")
	v.SetDefault("output.correlations", "correlation_table.csv")
	v.SetDefault("output.plot_dir", "plots")
	v.SetDefault("output.plot_split", 10)

	v.SetDefault("storage.db_path", "rollcorr.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("analyze.model", "claude-haiku-4-5-20251001")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Analysis.MinTimelineLength < 1 {
		return fmt.Errorf("analysis.min_timeline_length must be at least 1")
	}
	if c.Analysis.MaxWindow < 1 {
		return fmt.Errorf("analysis.max_window must be at least 1")
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative")
	}

	if c.Fetch.BaseURL == "" {
		return fmt.Errorf("fetch.base_url is required")
	}
	if c.Fetch.StartYear > c.Fetch.EndYear {
		return fmt.Errorf("fetch.start_year must not be after fetch.end_year")
	}
	if c.Fetch.StartMonth < 1 || c.Fetch.EndMonth > 12 || c.Fetch.StartMonth > c.Fetch.EndMonth {
		return fmt.Errorf("fetch months must satisfy 1 <= start_month <= end_month <= 12")
	}
	if c.Fetch.ChunkDays < 0 {
		return fmt.Errorf("fetch.chunk_days must not be negative")
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be at least 1")
	}
	if c.Fetch.RequestsPerSec <= 0 {
		return fmt.Errorf("fetch.requests_per_sec must be positive")
	}
	if c.Fetch.CacheEnabled && c.Fetch.CacheDir == "" {
		return fmt.Errorf("fetch.cache_dir is required when the cache is enabled")
	}

	if c.Output.Events == "" || c.Output.Rolling == "" || c.Output.Correlations == "" {
		return fmt.Errorf("output.events, output.rolling and output.correlations are required")
	}
	if c.Output.PlotSplit < 0 {
		return fmt.Errorf("output.plot_split must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}
	return nil
}
