// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package config provides layered configuration for the Spinwire server
// and companion processes: struct defaults, an optional YAML file, and
// environment variables, in ascending precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the Spinwire server process.
// The Companion section is only read by the companion binary.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Security  SecurityConfig  `koanf:"security"`
	Matcher   MatcherConfig   `koanf:"matcher"`
	Liveness  LivenessConfig  `koanf:"liveness"`
	Logging   LoggingConfig   `koanf:"logging"`
	Companion CompanionConfig `koanf:"companion"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// SecurityConfig holds authentication and rate-limit settings.
type SecurityConfig struct {
	JWTSecret        string        `koanf:"jwt_secret"`
	SessionTimeout   time.Duration `koanf:"session_timeout"`
	AdminUsername    string        `koanf:"admin_username"`
	AdminPassword    string        `koanf:"admin_password"` // bcrypt hash, or plaintext in development
	RateLimitReqs    int           `koanf:"rate_limit_reqs"`
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`
	TrackMinInterval time.Duration `koanf:"track_min_interval"`
	CORSOrigins      []string      `koanf:"cors_origins"`
}

// MatcherConfig holds request-matching settings.
type MatcherConfig struct {
	MatchWindow    time.Duration `koanf:"match_window"`
	FuzzyThreshold float64       `koanf:"fuzzy_threshold"`
	DedupBucket    time.Duration `koanf:"dedup_bucket"`
}

// LivenessConfig holds connection staleness settings.
type LivenessConfig struct {
	StalenessThreshold time.Duration `koanf:"staleness_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CompanionConfig holds settings for the companion process that runs
// alongside DJ software and reports detected tracks to the server.
type CompanionConfig struct {
	ServerURL            string        `koanf:"server_url"`
	Username             string        `koanf:"username"`
	Password             string        `koanf:"password"` // optional; prompted interactively when empty
	Source               string        `koanf:"source"`   // auto, text_file, or live_playlists
	TextFilePath         string        `koanf:"text_file_path"`
	LivePlaylistUsername string        `koanf:"live_playlist_username"`
	FilePollInterval     time.Duration `koanf:"file_poll_interval"`
	PlaylistPollInterval time.Duration `koanf:"playlist_poll_interval"`
	HeartbeatInterval    time.Duration `koanf:"heartbeat_interval"`
	TokenCachePath       string        `koanf:"token_cache_path"`
	SourceWaitAttempts   int           `koanf:"source_wait_attempts"`
	SourceWaitDelay      time.Duration `koanf:"source_wait_delay"`
	DisconnectTimeout    time.Duration `koanf:"disconnect_timeout"`
}

// Companion source selection modes.
const (
	SourceAuto          = "auto"
	SourceTextFile      = "text_file"
	SourceLivePlaylists = "live_playlists"
)

// Validate checks the configuration for internal consistency. It is run
// after all layers are merged, so it sees the effective values.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateMatcher(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Server.Environment == "production" {
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}
	if c.Security.TrackMinInterval < 0 {
		return fmt.Errorf("TRACK_MIN_INTERVAL must not be negative, got %s", c.Security.TrackMinInterval)
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	return nil
}

func (c *Config) validateMatcher() error {
	if c.Matcher.MatchWindow <= 0 {
		return fmt.Errorf("MATCH_WINDOW must be positive, got %s", c.Matcher.MatchWindow)
	}
	if c.Matcher.FuzzyThreshold < 0 || c.Matcher.FuzzyThreshold > 1 {
		return fmt.Errorf("FUZZY_THRESHOLD must be between 0 and 1, got %g", c.Matcher.FuzzyThreshold)
	}
	if c.Matcher.DedupBucket <= 0 {
		return fmt.Errorf("DEDUP_BUCKET must be positive, got %s", c.Matcher.DedupBucket)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// ValidateCompanion checks the companion section. Only the companion
// binary calls this; the server never needs these fields.
func (c *Config) ValidateCompanion() error {
	if c.Companion.ServerURL == "" {
		return fmt.Errorf("COMPANION_SERVER_URL is required")
	}
	if !strings.HasPrefix(c.Companion.ServerURL, "http://") && !strings.HasPrefix(c.Companion.ServerURL, "https://") {
		return fmt.Errorf("COMPANION_SERVER_URL must start with http:// or https://, got %q", c.Companion.ServerURL)
	}
	if c.Companion.Username == "" {
		return fmt.Errorf("COMPANION_USERNAME is required")
	}
	switch c.Companion.Source {
	case SourceAuto, SourceTextFile, SourceLivePlaylists:
	default:
		return fmt.Errorf("COMPANION_SOURCE must be auto, text_file, or live_playlists; got %q", c.Companion.Source)
	}
	if c.Companion.Source == SourceTextFile && c.Companion.TextFilePath == "" {
		return fmt.Errorf("COMPANION_TEXT_FILE_PATH is required when COMPANION_SOURCE=text_file")
	}
	if c.Companion.Source == SourceLivePlaylists && c.Companion.LivePlaylistUsername == "" {
		return fmt.Errorf("COMPANION_LIVE_PLAYLIST_USERNAME is required when COMPANION_SOURCE=live_playlists")
	}
	if c.Companion.HeartbeatInterval <= 0 {
		return fmt.Errorf("COMPANION_HEARTBEAT_INTERVAL must be positive, got %s", c.Companion.HeartbeatInterval)
	}
	if c.Companion.SourceWaitAttempts < 1 {
		return fmt.Errorf("COMPANION_SOURCE_WAIT_ATTEMPTS must be at least 1, got %d", c.Companion.SourceWaitAttempts)
	}
	return c.validateLogging()
}
