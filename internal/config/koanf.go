// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"spinwire.yaml",
	"spinwire.yml",
	"/etc/spinwire/config.yaml",
	"/etc/spinwire/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "SPINWIRE_CONFIG"

// defaultConfig returns a Config with all defaults applied. Defaults are
// the lowest layer; file and environment values override them.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8090,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/spinwire.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Security: SecurityConfig{
			JWTSecret:        "",
			SessionTimeout:   24 * time.Hour,
			AdminUsername:    "",
			AdminPassword:    "",
			RateLimitReqs:    100,
			RateLimitWindow:  time.Minute,
			TrackMinInterval: 2 * time.Second,
			CORSOrigins:      []string{"*"},
		},
		Matcher: MatcherConfig{
			MatchWindow:    3 * time.Hour,
			FuzzyThreshold: 0.85,
			DedupBucket:    10 * time.Minute,
		},
		Liveness: LivenessConfig{
			StalenessThreshold: 2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Companion: CompanionConfig{
			ServerURL:            "http://127.0.0.1:8090",
			Username:             "",
			Password:             "",
			Source:               SourceAuto,
			TextFilePath:         "",
			LivePlaylistUsername: "",
			FilePollInterval:     2 * time.Second,
			PlaylistPollInterval: 20 * time.Second,
			HeartbeatInterval:    30 * time.Second,
			TokenCachePath:       "", // empty disables the on-disk token cache
			SourceWaitAttempts:   60,
			SourceWaitDelay:      5 * time.Second,
			DisconnectTimeout:    2 * time.Second,
		},
	}
}

// Load builds the effective configuration from layered sources:
//  1. Struct defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
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

	envProvider := env.Provider("", ".", envTransformFunc)
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

	return cfg, nil
}

// findConfigFile returns the first existing config file path, checking
// the SPINWIRE_CONFIG override before the default locations.
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

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices.
// Env vars arrive as plain strings but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
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

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so that unrelated environment entries
// never pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Security
		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"track_min_interval":  "security.track_min_interval",
		"cors_origins":        "security.cors_origins",

		// Matcher
		"match_window":    "matcher.match_window",
		"fuzzy_threshold": "matcher.fuzzy_threshold",
		"dedup_bucket":    "matcher.dedup_bucket",

		// Liveness
		"staleness_threshold": "liveness.staleness_threshold",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Companion
		"companion_server_url":             "companion.server_url",
		"companion_username":               "companion.username",
		"companion_password":               "companion.password",
		"companion_source":                 "companion.source",
		"companion_text_file_path":         "companion.text_file_path",
		"companion_live_playlist_username": "companion.live_playlist_username",
		"companion_file_poll_interval":     "companion.file_poll_interval",
		"companion_playlist_poll_interval": "companion.playlist_poll_interval",
		"companion_heartbeat_interval":     "companion.heartbeat_interval",
		"companion_token_cache_path":       "companion.token_cache_path",
		"companion_source_wait_attempts":   "companion.source_wait_attempts",
		"companion_source_wait_delay":      "companion.source_wait_delay",
		"companion_disconnect_timeout":     "companion.disconnect_timeout",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
