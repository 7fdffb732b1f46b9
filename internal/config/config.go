// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration from defaults, an optional
// YAML file and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's runtime configuration.
type Config struct {
	Listen   string      `yaml:"listen"`
	LogLevel string      `yaml:"logLevel"`
	Store    StoreConfig `yaml:"store"`
	Rate     RateConfig  `yaml:"rateLimit"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"` // memory, redis or badger
	Path    string      `yaml:"path"`    // data directory (badger)
	TTL     Duration    `yaml:"ttl"`
	Redis   RedisConfig `yaml:"redis"`
}

// Duration parses YAML scalars like "30m" or "1h" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateConfig configures the ingress rate limiter.
type RateConfig struct {
	Enabled  bool `yaml:"enabled"`
	Requests int  `yaml:"requests"` // per window
	WindowS  int  `yaml:"windowSeconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:   ":8686",
		LogLevel: "info",
		Store: StoreConfig{
			Backend: "memory",
			TTL:     Duration(30 * time.Minute),
			Redis: RedisConfig{
				Addr: "127.0.0.1:6379",
			},
		},
		Rate: RateConfig{
			Enabled:  true,
			Requests: 600,
			WindowS:  60,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path when non-empty, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	mergeEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func mergeEnv(cfg *Config) {
	cfg.Listen = ParseString("ICEGATE_LISTEN", cfg.Listen)
	cfg.LogLevel = ParseString("ICEGATE_LOG_LEVEL", cfg.LogLevel)

	cfg.Store.Backend = ParseString("ICEGATE_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = ParseString("ICEGATE_STORE_PATH", cfg.Store.Path)
	cfg.Store.TTL = Duration(ParseDuration("ICEGATE_SESSION_TTL", cfg.Store.TTL.Std()))
	cfg.Store.Redis.Addr = ParseString("ICEGATE_REDIS_ADDR", cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = ParseString("ICEGATE_REDIS_PASSWORD", cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = ParseInt("ICEGATE_REDIS_DB", cfg.Store.Redis.DB)

	cfg.Rate.Enabled = ParseBool("ICEGATE_RATELIMIT_ENABLED", cfg.Rate.Enabled)
	cfg.Rate.Requests = ParseInt("ICEGATE_RATELIMIT_REQUESTS", cfg.Rate.Requests)
	cfg.Rate.WindowS = ParseInt("ICEGATE_RATELIMIT_WINDOW_SECONDS", cfg.Rate.WindowS)
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "memory", "redis":
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store backend badger requires a path")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.Rate.Enabled && c.Rate.Requests <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	return nil
}
