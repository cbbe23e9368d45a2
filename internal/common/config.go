// Package common provides shared utilities for earnboard
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for earnboard. It is loaded once at startup,
// validated, and treated as immutable afterwards.
type Config struct {
	Environment string         `toml:"environment"`
	Exchange    ExchangeConfig `toml:"exchange"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Clients     ClientsConfig  `toml:"clients"`
	Pipeline    PipelineConfig `toml:"pipeline"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ExchangeConfig pins the exchange timezone used for all trading-day math.
type ExchangeConfig struct {
	Timezone string `toml:"timezone"` // IANA name, default "America/New_York"
}

// ServerConfig holds HTTP server configuration for the read API.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the data directory for the embedded store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds upstream feed client configurations.
type ClientsConfig struct {
	Earnings FeedConfig `toml:"earnings"`
	Quotes   FeedConfig `toml:"quotes"`
}

// FeedConfig configures one upstream HTTP feed.
type FeedConfig struct {
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key"`
	RateLimit   int    `toml:"rate_limit"`   // requests per second
	Timeout     string `toml:"timeout"`      // per-request deadline, duration string
	MaxRetries  int    `toml:"max_retries"`  // retry attempts after the first call
	BreakerTrip int    `toml:"breaker_trip"` // consecutive failures before the circuit opens
}

// GetTimeout parses and returns the timeout duration.
func (c *FeedConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// PipelineConfig holds orchestrator scheduling configuration.
type PipelineConfig struct {
	Interval           string `toml:"interval"`             // recurring trigger, default "5m"
	ResetTime          string `toml:"reset_time"`           // exchange-local "HH:MM" daily reset
	QuietWindow        string `toml:"quiet_window"`         // interval suppression after reset
	RunTimeout         string `toml:"run_timeout"`          // stuck-run self-heal deadline
	AllowClear         bool   `toml:"allow_clear"`          // gate for the daily reset wipe
	BatchSize          int    `toml:"batch_size"`           // symbols per fetch batch
	MaxConcurrent      int    `toml:"max_concurrent"`       // concurrent symbol fetches per batch
	BatchDelay         string `toml:"batch_delay"`          // pause between batches
	AllowStaleFallback bool   `toml:"allow_stale_fallback"` // previous-close as price outside after-hours
}

// GetInterval parses the recurring trigger interval.
func (c *PipelineConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// GetQuietWindow parses the post-reset quiet window.
func (c *PipelineConfig) GetQuietWindow() time.Duration {
	d, err := time.ParseDuration(c.QuietWindow)
	if err != nil || d < 0 {
		return 10 * time.Minute
	}
	return d
}

// GetRunTimeout parses the stuck-run deadline.
func (c *PipelineConfig) GetRunTimeout() time.Duration {
	d, err := time.ParseDuration(c.RunTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// GetBatchDelay parses the inter-batch delay.
func (c *PipelineConfig) GetBatchDelay() time.Duration {
	d, err := time.ParseDuration(c.BatchDelay)
	if err != nil || d < 0 {
		return 500 * time.Millisecond
	}
	return d
}

// ResetClock returns the daily reset time as minutes after exchange-local
// midnight. Invalid values fall back to 04:30.
func (c *PipelineConfig) ResetClock() int {
	t, err := time.Parse("15:04", c.ResetTime)
	if err != nil {
		return 4*60 + 30
	}
	return t.Hour()*60 + t.Minute()
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Exchange: ExchangeConfig{
			Timezone: "America/New_York",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/earnboard",
		},
		Clients: ClientsConfig{
			Earnings: FeedConfig{
				BaseURL:     "https://earningsfeed.example.com/api",
				RateLimit:   5,
				Timeout:     "30s",
				MaxRetries:  2,
				BreakerTrip: 5,
			},
			Quotes: FeedConfig{
				BaseURL:     "https://quotefeed.example.com/api",
				RateLimit:   10,
				Timeout:     "30s",
				MaxRetries:  2,
				BreakerTrip: 5,
			},
		},
		Pipeline: PipelineConfig{
			Interval:      "5m",
			ResetTime:     "04:30",
			QuietWindow:   "10m",
			RunTimeout:    "30m",
			AllowClear:    true,
			BatchSize:     50,
			MaxConcurrent: 8,
			BatchDelay:    "500ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// This is the only place the process reads its environment.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("EARNBOARD_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("EARNBOARD_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("EARNBOARD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("EARNBOARD_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("EARNBOARD_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if tz := os.Getenv("EARNBOARD_EXCHANGE_TZ"); tz != "" {
		config.Exchange.Timezone = tz
	}

	if key := os.Getenv("EARNBOARD_EARNINGS_API_KEY"); key != "" {
		config.Clients.Earnings.APIKey = key
	}
	if key := os.Getenv("EARNBOARD_QUOTES_API_KEY"); key != "" {
		config.Clients.Quotes.APIKey = key
	}

	if v := os.Getenv("EARNBOARD_ALLOW_STALE_FALLBACK"); v != "" {
		config.Pipeline.AllowStaleFallback = v == "1" || strings.EqualFold(v, "true")
	}
}

// Validate checks enumerated options and rejects configurations the pipeline
// cannot run with.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Exchange.Timezone); err != nil {
		return fmt.Errorf("invalid exchange timezone %q: %w", c.Exchange.Timezone, err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}

	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = 50
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		c.Pipeline.MaxConcurrent = 8
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
