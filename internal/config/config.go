// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

// Package config loads the service configuration with layered sources:
// struct defaults, an optional YAML file, then KIROKU_-prefixed environment
// variables. ENV > file > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/kiroku-project/kiroku/internal/recommend"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "KIROKU_CONFIG"

// DefaultConfigPaths are searched in order when KIROKU_CONFIG is unset.
var DefaultConfigPaths = []string{
	"kiroku.yaml",
	"config/kiroku.yaml",
	"/etc/kiroku/kiroku.yaml",
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Log       LogConfig        `koanf:"log"`
	Database  DatabaseConfig   `koanf:"database"`
	Auth      AuthConfig       `koanf:"auth"`
	Cache     CacheConfig      `koanf:"cache"`
	Recommend recommend.Config `koanf:"recommend"`
	RateLimit RateLimitConfig  `koanf:"ratelimit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path         string `koanf:"path"`
	MaxMemory    string `koanf:"max_memory"`
	Threads      int    `koanf:"threads"`        // 0 = NumCPU
	MaxOpenConns int    `koanf:"max_open_conns"` // 0 = single writer connection
}

// AuthConfig holds the bearer-token settings. User identity comes from JWTs
// minted by the platform's auth service; this service only verifies them.
type AuthConfig struct {
	JWTSecret     string `koanf:"jwt_secret"`
	OperatorToken string `koanf:"operator_token"` // guards cache admin endpoints
}

// CacheConfig holds recommendation cache lifetimes.
type CacheConfig struct {
	DefaultTTL      time.Duration `koanf:"default_ttl"`
	SimilarTTL      time.Duration `koanf:"similar_ttl"`
	TrendingTTL     time.Duration `koanf:"trending_ttl"`
	PersonalizedTTL time.Duration `koanf:"personalized_ttl"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// TTLs converts the cache section into the engine's per-operation TTL set.
func (c CacheConfig) TTLs() recommend.CacheTTLs {
	return recommend.CacheTTLs{
		Similar:      c.SimilarTTL,
		Trending:     c.TrendingTTL,
		Personalized: c.PersonalizedTTL,
	}
}

// RateLimitConfig holds per-IP request limits. Writes are tighter than
// reads: a dwell-gated client produces at most a handful of engagement
// writes per minute, so a high write rate is abuse.
type RateLimitConfig struct {
	ReadPerMinute  int `koanf:"read_per_minute"`
	WritePerMinute int `koanf:"write_per_minute"`
}

// Default returns a copy of the built-in defaults without consulting
// files or the environment. Used by tests and tooling.
func Default() Config {
	return defaultConfig()
}

// defaultConfig returns the built-in defaults.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:      "data/kiroku.db",
			MaxMemory: "2GB",
		},
		Cache: CacheConfig{
			DefaultTTL:      5 * time.Minute,
			SimilarTTL:      30 * time.Minute,
			TrendingTTL:     2 * time.Minute,
			PersonalizedTTL: 10 * time.Minute,
			JanitorInterval: 5 * time.Minute,
		},
		Recommend: *recommend.DefaultConfig(),
		RateLimit: RateLimitConfig{
			ReadPerMinute:  300,
			WritePerMinute: 60,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Cache.SimilarTTL <= 0 || c.Cache.TrendingTTL <= 0 || c.Cache.PersonalizedTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.RateLimit.ReadPerMinute <= 0 || c.RateLimit.WritePerMinute <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	return nil
}
