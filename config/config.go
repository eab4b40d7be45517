package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Fundingflow FundingflowConfig      `yaml:"fundingflow"`
	Metrics     MetricsConfig          `yaml:"metrics"`
	Refresh     RefreshConfig          `yaml:"refresh"`
	Reader      ReaderConfig           `yaml:"reader"`
	Venues      map[string]VenueConfig `yaml:"venues"`
	Logging     LoggingConfig          `yaml:"logging"`
}

type FundingflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type MetricsConfig struct {
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
	ReportInterval time.Duration    `yaml:"report_interval"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type RefreshConfig struct {
	Interval                 time.Duration `yaml:"interval"`
	PreloadInterval          time.Duration `yaml:"preload_interval"`
	MinSpreadThreshold       float64       `yaml:"min_spread_threshold"`
	CompareAcrossMarginTypes bool          `yaml:"compare_across_margin_types"`
	TopLimit                 int           `yaml:"top_limit"`
}

type ReaderConfig struct {
	Timeout       time.Duration   `yaml:"timeout"`
	MaxConcurrent int             `yaml:"max_concurrent"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Retry         RetryConfig     `yaml:"retry"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
}

type VenueConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	// InstrumentsURL points at the venue's contract metadata endpoint when a
	// secondary request is needed to enumerate instruments or settlement
	// intervals.
	InstrumentsURL       string        `yaml:"instruments_url"`
	DefaultIntervalHours float64       `yaml:"default_interval_hours"`
	Cooldown             time.Duration `yaml:"cooldown"`
	// Additive venues only contribute symbols the primary venues do not
	// already cover.
	Additive      bool   `yaml:"additive"`
	APIKeyEnv     string `yaml:"api_key_env"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Stream        bool   `yaml:"stream"`
	// Symbols restricts the venue to an explicit contract list. Used by venues
	// whose API only serves funding data per instrument.
	Symbols []string `yaml:"symbols"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Refresh: RefreshConfig{
			Interval:           45 * time.Second,
			PreloadInterval:    time.Hour,
			MinSpreadThreshold: 0.0005,
			TopLimit:           10,
		},
		Reader: ReaderConfig{
			Timeout:       10 * time.Second,
			MaxConcurrent: 8,
			Retry: RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         500 * time.Millisecond,
				MaxDelay:          5 * time.Second,
				BackoffMultiplier: 2,
			},
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment overrides take precedence over file values.
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
		}
		config.Refresh.Interval = d
	}
	if v := os.Getenv("MIN_SPREAD_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MIN_SPREAD_THRESHOLD: %w", err)
		}
		config.Refresh.MinSpreadThreshold = f
	}
	if v := os.Getenv("AWS_REGION"); v != "" && config.Metrics.CloudWatch.Enabled {
		config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Fundingflow.Name == "" {
		return fmt.Errorf("fundingflow.name is required")
	}

	if cfg.Fundingflow.Version == "" {
		return fmt.Errorf("fundingflow.version is required")
	}

	if cfg.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than 0")
	}
	if cfg.Refresh.MinSpreadThreshold < 0 {
		return fmt.Errorf("refresh.min_spread_threshold must not be negative")
	}
	if cfg.Refresh.TopLimit <= 0 {
		return fmt.Errorf("refresh.top_limit must be greater than 0")
	}

	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}
	if cfg.Reader.MaxConcurrent <= 0 {
		return fmt.Errorf("reader.max_concurrent must be greater than 0")
	}
	if cfg.Reader.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("reader.retry.max_attempts must be greater than 0")
	}

	// Production-like deployments must not point venues at plaintext
	// endpoints; development keeps the door open for local test servers.
	env := AppEnvironment()
	strict := IsProductionLike(env)

	enabled := 0
	for name, venue := range cfg.Venues {
		if !venue.Enabled {
			continue
		}
		enabled++
		if venue.DefaultIntervalHours < 0 {
			return fmt.Errorf("venues.%s.default_interval_hours must not be negative", name)
		}
		if venue.Cooldown < 0 {
			return fmt.Errorf("venues.%s.cooldown must not be negative", name)
		}
		if strict {
			for field, url := range map[string]string{"url": venue.URL, "instruments_url": venue.InstrumentsURL} {
				if url != "" && !strings.HasPrefix(url, "https://") {
					return fmt.Errorf("venues.%s.%s must use https in the %s environment", name, field, env)
				}
			}
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one venue must be enabled")
	}

	return nil
}

// EnabledVenues returns the names of enabled venues in no particular order.
func (c *Config) EnabledVenues() []string {
	out := make([]string, 0, len(c.Venues))
	for name, venue := range c.Venues {
		if venue.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// DefaultIntervals collects the configured per-venue settlement defaults,
// keyed by venue name, for seeding the interval store.
func (c *Config) DefaultIntervals() map[string]float64 {
	out := make(map[string]float64, len(c.Venues))
	for name, venue := range c.Venues {
		if venue.DefaultIntervalHours > 0 {
			out[name] = venue.DefaultIntervalHours
		}
	}
	return out
}
