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
	Logging LoggingConfig `mapstructure:"logging"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Store   StoreConfig   `mapstructure:"store"`
	Sources SourcesConfig `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FetchConfig governs the polite fetch layer.
type FetchConfig struct {
	UserAgent       string  `mapstructure:"user_agent"`
	CacheDir        string  `mapstructure:"cache_dir"`
	DelayMinSeconds float64 `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds float64 `mapstructure:"delay_max_seconds"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	Retries         int     `mapstructure:"retries"`
}

// Timeout converts the fetch timeout into a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// StoreConfig sets paths for the profile stores and their backups.
type StoreConfig struct {
	Dir       string `mapstructure:"dir"`
	BackupDir string `mapstructure:"backup_dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

// SourcesConfig holds credentials and gating for the OSINT source adapters.
// The base URL overrides exist so tests can point adapters at local servers.
type SourcesConfig struct {
	ShodanAPIKey        string `mapstructure:"shodan_api_key"`
	HunterAPIKey        string `mapstructure:"hunter_api_key"`
	HIBPAPIKey          string `mapstructure:"hibp_api_key"`
	AllowExpensiveScans bool   `mapstructure:"allow_expensive_scans"`
	HTTPTimeoutSeconds  int    `mapstructure:"http_timeout_seconds"`
	ShodanBaseURL       string `mapstructure:"shodan_base_url"`
	HunterBaseURL       string `mapstructure:"hunter_base_url"`
	HIBPBaseURL         string `mapstructure:"hibp_base_url"`
	WaybackBaseURL      string `mapstructure:"wayback_base_url"`
}

// HTTPTimeout converts the source adapter timeout into a duration.
func (s SourcesConfig) HTTPTimeout() time.Duration {
	return time.Duration(s.HTTPTimeoutSeconds) * time.Second
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BROWSINT")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; Browsint/1.0)")
	v.SetDefault("fetch.cache_dir", "data/cache")
	v.SetDefault("fetch.delay_min_seconds", 1.0)
	v.SetDefault("fetch.delay_max_seconds", 3.0)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("store.dir", "data/db")
	v.SetDefault("store.backup_dir", "data/db/backups")
	v.SetDefault("store.cache_size", 50)
	v.SetDefault("sources.allow_expensive_scans", false)
	v.SetDefault("sources.http_timeout_seconds", 15)
	v.SetDefault("sources.shodan_base_url", "https://api.shodan.io")
	v.SetDefault("sources.hunter_base_url", "https://api.hunter.io")
	v.SetDefault("sources.hibp_base_url", "https://haveibeenpwned.com")
	v.SetDefault("sources.wayback_base_url", "https://web.archive.org")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must be >= 0")
	}
	if c.Fetch.DelayMinSeconds < 0 {
		return fmt.Errorf("fetch.delay_min_seconds must be >= 0")
	}
	if c.Fetch.DelayMaxSeconds < c.Fetch.DelayMinSeconds {
		return fmt.Errorf("fetch.delay_max_seconds must be >= fetch.delay_min_seconds")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must be set")
	}
	if c.Store.CacheSize <= 0 {
		return fmt.Errorf("store.cache_size must be > 0")
	}
	if c.Sources.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("sources.http_timeout_seconds must be > 0")
	}
	return nil
}
