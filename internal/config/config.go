// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Search  SearchConfig  `mapstructure:"search"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SearchConfig governs the backend search client.
type SearchConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Region         string `mapstructure:"region"`
	SafeSearch     bool   `mapstructure:"safe_search"`
	MaxResults     int    `mapstructure:"max_results"`
	SnippetLength  int    `mapstructure:"snippet_length"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language"`
}

// FetchConfig governs page content retrieval.
type FetchConfig struct {
	ContentLimit         int    `mapstructure:"content_limit"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	ReaderEnabled        bool   `mapstructure:"reader_enabled"`
	ReaderBaseURL        string `mapstructure:"reader_base_url"`
	ReaderTimeoutSeconds int    `mapstructure:"reader_timeout_seconds"`
	RawTimeoutSeconds    int    `mapstructure:"raw_timeout_seconds"`
}

// CacheConfig sets cache capacity and the per-class entry lifetimes.
type CacheConfig struct {
	Capacity          int `mapstructure:"capacity"`
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds"`
	NewsTTLSeconds    int `mapstructure:"news_ttl_seconds"`
	DocsTTLSeconds    int `mapstructure:"docs_ttl_seconds"`
}

// LimitsConfig bounds outbound concurrency and per-domain request rate.
type LimitsConfig struct {
	Concurrency    int     `mapstructure:"concurrency"`
	PerDomainRPS   float64 `mapstructure:"per_domain_rps"`
	PerDomainBurst int     `mapstructure:"per_domain_burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SEARCHFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.region", "tw")
	v.SetDefault("search.safe_search", true)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.snippet_length", 150)
	v.SetDefault("search.timeout_seconds", 30)
	v.SetDefault("search.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("search.accept_language", "zh-TW,zh;q=0.9,en;q=0.8")
	v.SetDefault("fetch.content_limit", 5000)
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.reader_enabled", true)
	v.SetDefault("fetch.reader_base_url", "https://r.jina.ai/")
	v.SetDefault("fetch.reader_timeout_seconds", 15)
	v.SetDefault("fetch.raw_timeout_seconds", 10)
	v.SetDefault("cache.capacity", 100)
	v.SetDefault("cache.default_ttl_seconds", 3600)
	v.SetDefault("cache.news_ttl_seconds", 900)
	v.SetDefault("cache.docs_ttl_seconds", 86400)
	v.SetDefault("limits.concurrency", 5)
	v.SetDefault("limits.per_domain_rps", 2)
	v.SetDefault("limits.per_domain_burst", 2)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url must be set")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	if c.Search.TimeoutSeconds <= 0 {
		return fmt.Errorf("search.timeout_seconds must be > 0")
	}
	if c.Fetch.ContentLimit <= 0 {
		return fmt.Errorf("fetch.content_limit must be > 0")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be > 0")
	}
	if c.Cache.DefaultTTLSeconds < 0 {
		return fmt.Errorf("cache.default_ttl_seconds must be >= 0")
	}
	if c.Limits.Concurrency <= 0 {
		return fmt.Errorf("limits.concurrency must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// SearchTimeout converts the search timeout into a duration.
func (c Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// FetchTimeout converts the direct fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// ReaderTimeout converts the reader timeout into a duration.
func (c Config) ReaderTimeout() time.Duration {
	return time.Duration(c.Fetch.ReaderTimeoutSeconds) * time.Second
}

// RawTimeout converts the fallback fetch timeout into a duration.
func (c Config) RawTimeout() time.Duration {
	return time.Duration(c.Fetch.RawTimeoutSeconds) * time.Second
}

// DefaultTTL converts the default cache lifetime into a duration.
func (c Config) DefaultTTL() time.Duration {
	return time.Duration(c.Cache.DefaultTTLSeconds) * time.Second
}

// NewsTTL converts the news cache lifetime into a duration.
func (c Config) NewsTTL() time.Duration {
	return time.Duration(c.Cache.NewsTTLSeconds) * time.Second
}

// DocsTTL converts the docs cache lifetime into a duration.
func (c Config) DocsTTL() time.Duration {
	return time.Duration(c.Cache.DocsTTLSeconds) * time.Second
}
