package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Duration is a [time.Duration] that decodes from TOML strings such as "10m".
type Duration struct {
	time.Duration
}

// UnmarshalText parses the duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, text)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Providers map[string]ProviderConfig `toml:"providers"`
	Order     []string                  `toml:"order"`
	Cache     CacheConfig               `toml:"cache"`
	Retry     RetryConfig               `toml:"retry"`
	Matcher   MatcherConfig             `toml:"matcher"`
	Fallback  FallbackConfig            `toml:"fallback"`
	Database  DatabaseConfig            `toml:"database"`
	Server    ServerConfig              `toml:"server"`
	Log       LogConfig                 `toml:"log"`
}

// ProviderConfig contains per-provider switches and credentials.
type ProviderConfig struct {
	Enabled       bool    `toml:"enabled"`
	QualityWeight float64 `toml:"quality_weight"`
	BaseURL       string  `toml:"base_url"`
	Cookie        string  `toml:"cookie"`
	RateLimit     float64 `toml:"rate_limit"` // requests per second, 0 = unlimited
	ClientID      string  `toml:"client_id"`
	ClientSecret  string  `toml:"client_secret"`
	ProxyURL      string  `toml:"proxy_url"`
}

// CacheConfig sizes the in-memory caches in front of providers.
type CacheConfig struct {
	MaxSize       int      `toml:"max_size"`
	SearchTTL     Duration `toml:"search_ttl"`
	URLTTL        Duration `toml:"url_ttl"`
	LyricTTL      Duration `toml:"lyric_ttl"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// RetryConfig controls the retry policy shared by every upstream call.
type RetryConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	BaseDelay      Duration `toml:"base_delay"`
	MaxDelay       Duration `toml:"max_delay"`
	AttemptTimeout Duration `toml:"attempt_timeout"`
}

// MatcherConfig holds the acceptance threshold and score weights.
type MatcherConfig struct {
	MinScore       float64 `toml:"min_score"`
	TitleWeight    float64 `toml:"title_weight"`
	ArtistWeight   float64 `toml:"artist_weight"`
	DurationWeight float64 `toml:"duration_weight"`
}

// FallbackConfig selects how alternate providers are ranked.
type FallbackConfig struct {
	Strategy    string `toml:"strategy"`
	SearchLimit int    `toml:"search_limit"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ProviderOrder returns provider IDs in declaration order.
//
// Providers named in Order come first; any remaining configured providers follow alphabetically.
func (c *Config) ProviderOrder() []string {
	seen := make(map[string]bool, len(c.Providers))
	order := make([]string, 0, len(c.Providers))
	for _, id := range c.Order {
		if _, ok := c.Providers[id]; ok && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}

	var rest []string
	for id := range c.Providers {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var problems []string

	if c.Cache.MaxSize <= 0 {
		problems = append(problems, fmt.Sprintf("cache.max_size must be positive, got %d", c.Cache.MaxSize))
	}
	for name, ttl := range map[string]Duration{
		"search_ttl": c.Cache.SearchTTL, "url_ttl": c.Cache.URLTTL, "lyric_ttl": c.Cache.LyricTTL,
	} {
		if ttl.Duration <= 0 {
			problems = append(problems, fmt.Sprintf("cache.%s must be positive", name))
		}
	}

	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, fmt.Sprintf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.AttemptTimeout.Duration <= 0 {
		problems = append(problems, "retry.attempt_timeout must be positive")
	}

	if c.Matcher.MinScore < 0 || c.Matcher.MinScore > 1 {
		problems = append(problems, fmt.Sprintf("matcher.min_score must be within [0,1], got %v", c.Matcher.MinScore))
	}
	if sum := c.Matcher.TitleWeight + c.Matcher.ArtistWeight + c.Matcher.DurationWeight; sum <= 0 {
		problems = append(problems, "matcher weights must sum to a positive value")
	}

	switch strings.ToLower(c.Fallback.Strategy) {
	case "auto", "fallback", "quality", "speed":
	default:
		problems = append(problems, fmt.Sprintf("fallback.strategy must be one of: auto, fallback, quality, speed, got: %s", c.Fallback.Strategy))
	}
	if c.Fallback.SearchLimit < 1 || c.Fallback.SearchLimit > 10 {
		problems = append(problems, fmt.Sprintf("fallback.search_limit must be within [1,10], got %d", c.Fallback.SearchLimit))
	}

	for id, p := range c.Providers {
		if p.QualityWeight < 0 || p.QualityWeight > 1 {
			problems = append(problems, fmt.Sprintf("providers.%s.quality_weight must be within [0,1]", id))
		}
		if p.RateLimit < 0 {
			problems = append(problems, fmt.Sprintf("providers.%s.rate_limit cannot be negative", id))
		}
		if p.BaseURL != "" {
			if _, err := url.ParseRequestURI(p.BaseURL); err != nil {
				problems = append(problems, fmt.Sprintf("providers.%s.base_url is not a valid URL: %s", id, p.BaseURL))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}
