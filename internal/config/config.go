package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level board.yml configuration.
type Config struct {
	Redis  RedisConfig  `yaml:"redis"`
	Source SourceConfig `yaml:"source"`
	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
}

// RedisConfig specifies the cache tier connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// SourceConfig specifies the fallback sources tried on a cache miss.
type SourceConfig struct {
	APIBaseURL        string `yaml:"api_base_url"`        // External patient-data API, empty disables the source
	APITimeoutSeconds int    `yaml:"api_timeout_seconds"` // Hard budget per API call
	StaticDir         string `yaml:"static_dir"`          // Directory of board_items_<patient>.json files
}

// CacheConfig specifies the two independent cache timers.
type CacheConfig struct {
	RetentionHours   int `yaml:"retention_hours"`   // Hard cache lifetime from last write
	FreshnessSeconds int `yaml:"freshness_seconds"` // Re-fetch window for fallback-sourced data
}

// ServerConfig specifies the HTTP daemon.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no board.yml is present.
func Default() *Config {
	return &Config{
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Source: SourceConfig{APITimeoutSeconds: 30},
		Cache:  CacheConfig{RetentionHours: 24, FreshnessSeconds: 300},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads board.yml from the given path, fills in defaults for omitted
// fields and applies environment overrides. A missing file is not an
// error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployments override file settings without editing it.
func (c *Config) applyEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("BOARD_API_URL"); v != "" {
		c.Source.APIBaseURL = v
	}
	if v := os.Getenv("BOARD_STATIC_DIR"); v != "" {
		c.Source.StaticDir = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr cannot be empty")
	}
	if c.Source.APITimeoutSeconds <= 0 {
		return fmt.Errorf("source.api_timeout_seconds must be positive, got %d", c.Source.APITimeoutSeconds)
	}
	if c.Cache.RetentionHours <= 0 {
		return fmt.Errorf("cache.retention_hours must be positive, got %d", c.Cache.RetentionHours)
	}
	if c.Cache.FreshnessSeconds <= 0 {
		return fmt.Errorf("cache.freshness_seconds must be positive, got %d", c.Cache.FreshnessSeconds)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	return nil
}

// Retention is the hard cache lifetime from last write.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Cache.RetentionHours) * time.Hour
}

// Freshness is the re-fetch window for fallback-sourced data.
func (c *Config) Freshness() time.Duration {
	return time.Duration(c.Cache.FreshnessSeconds) * time.Second
}

// APITimeout is the hard budget for one external API call.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.Source.APITimeoutSeconds) * time.Second
}
