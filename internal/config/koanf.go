// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. KIROKU_-prefixed environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("KIROKU_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps flattened environment variable names (after the KIROKU_
// prefix is stripped and lowercased) to nested config paths. Only paths
// deeper than one section need an entry; the generic rule below covers
// SECTION_FIELD names.
var envMappings = map[string]string{
	"server_read_timeout":     "server.read_timeout",
	"server_write_timeout":    "server.write_timeout",
	"server_shutdown_timeout": "server.shutdown_timeout",
	"server_cors_origins":     "server.cors_origins",

	"database_max_memory":     "database.max_memory",
	"database_max_open_conns": "database.max_open_conns",

	"auth_jwt_secret":     "auth.jwt_secret",
	"auth_operator_token": "auth.operator_token",

	"cache_default_ttl":      "cache.default_ttl",
	"cache_similar_ttl":      "cache.similar_ttl",
	"cache_trending_ttl":     "cache.trending_ttl",
	"cache_personalized_ttl": "cache.personalized_ttl",
	"cache_janitor_interval": "cache.janitor_interval",

	"ratelimit_read_per_minute":  "ratelimit.read_per_minute",
	"ratelimit_write_per_minute": "ratelimit.write_per_minute",

	"recommend_similarity_series":               "recommend.similarity.series",
	"recommend_similarity_category":             "recommend.similarity.category",
	"recommend_similarity_tags":                 "recommend.similarity.tags",
	"recommend_similarity_episode":              "recommend.similarity.episode",
	"recommend_similarity_max_episode_distance": "recommend.similarity.max_episode_distance",
	"recommend_similarity_min_score":            "recommend.similarity.min_score",
	"recommend_trending_views":                  "recommend.trending.views",
	"recommend_trending_likes":                  "recommend.trending.likes",
	"recommend_trending_bookmarks":              "recommend.trending.bookmarks",
	"recommend_diversity_factor":                "recommend.diversity.factor",
	"recommend_limits_default_limit":            "recommend.limits.default_limit",
	"recommend_limits_max_limit":                "recommend.limits.max_limit",
	"recommend_limits_default_timeframe_days":   "recommend.limits.default_timeframe_days",
	"recommend_limits_max_timeframe_days":       "recommend.limits.max_timeframe_days",
	"recommend_limits_max_seeds":                "recommend.limits.max_seeds",
}

// envTransformFunc maps KIROKU_SECTION_FIELD to section.field. Multi-level
// paths go through envMappings; the fallback splits on the first underscore
// (KIROKU_SERVER_PORT -> server.port, KIROKU_LOG_LEVEL -> log.level).
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "KIROKU_"))

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	if idx := strings.Index(key, "_"); idx > 0 {
		return key[:idx] + "." + key[idx+1:]
	}
	return key
}

// sliceConfigPaths lists paths parsed as comma-separated slices when they
// arrive as strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
