package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Extract   ExtractConfig
	Share     ShareConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// UpstreamConfig holds target-site fetch configuration.
type UpstreamConfig struct {
	Timeout      time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	MaxRedirects int           `envconfig:"UPSTREAM_MAX_REDIRECTS" default:"10"`
	UserAgent    string        `envconfig:"UPSTREAM_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"`
}

// ExtractConfig holds stream extraction configuration.
type ExtractConfig struct {
	// FamiliesFile optionally points at a TOML file overriding the
	// built-in source family host lists and filters.
	FamiliesFile string        `envconfig:"FAMILIES_FILE" default:""`
	Timeout      time.Duration `envconfig:"EXTRACT_TIMEOUT" default:"20s"`
}

// ShareConfig holds share-link store configuration.
type ShareConfig struct {
	Dir           string        `envconfig:"SHARE_DIR" default:"/tmp/multiview-shares"`
	MaxAge        time.Duration `envconfig:"SHARE_MAX_AGE" default:"720h"`
	MaxInactive   time.Duration `envconfig:"SHARE_MAX_INACTIVE" default:"168h"`
	SweepInterval time.Duration `envconfig:"SHARE_SWEEP_INTERVAL" default:"1h"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// FamilyOverrides mirrors the optional TOML file shape for operator-tuned
// extraction rules. Empty slices leave the built-in defaults untouched.
type FamilyOverrides struct {
	Families        []FamilyOverride `toml:"families"`
	IframeBlocklist []string         `toml:"iframe_blocklist"`
	ProviderHosts   []string         `toml:"provider_hosts"`
}

// FamilyOverride replaces the host list of one named family.
type FamilyOverride struct {
	Name  string   `toml:"name"`
	Hosts []string `toml:"hosts"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFamilyOverrides reads the optional TOML overrides file. A missing
// path returns an empty override set, not an error.
func LoadFamilyOverrides(path string) (*FamilyOverrides, error) {
	if path == "" {
		return &FamilyOverrides{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read families file: %w", err)
	}
	var overrides FamilyOverrides
	if err := toml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse families file: %w", err)
	}
	return &overrides, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Upstream: UpstreamConfig{
			Timeout:      30 * time.Second,
			MaxRedirects: 10,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		Extract: ExtractConfig{
			Timeout: 20 * time.Second,
		},
		Share: ShareConfig{
			Dir:           "/tmp/multiview-shares",
			MaxAge:        720 * time.Hour,
			MaxInactive:   168 * time.Hour,
			SweepInterval: time.Hour,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
