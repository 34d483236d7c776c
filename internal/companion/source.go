// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package companion implements the DJ-side process: it owns exactly one
// track detection source, forwards detected plays to the server, and
// keeps liveness current with a heartbeat timer. All outbound calls
// funnel through a single serialized HTTP sender so plays are reported
// in detection order.
package companion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
)

// EmitFunc receives each newly detected track. Sources call it only on
// change, never on every poll tick.
type EmitFunc func(event models.TrackEvent)

// TrackSource is a detection backend. Run blocks until the context is
// canceled; cancellation is the only stop signal, so stopping a source
// never waits on an in-flight poll.
type TrackSource interface {
	// Method is the detection method tag reported with each event.
	Method() string

	// SourceFile is the watched file path for file-based sources,
	// empty otherwise.
	SourceFile() string

	Run(ctx context.Context) error
}

// trackFileCandidates returns the well-known per-platform paths where
// DJ software drops a current-track text file. An explicit configured
// path always wins.
func trackFileCandidates(cfg *config.CompanionConfig) []string {
	if cfg.TextFilePath != "" {
		return []string{cfg.TextFilePath}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	switch runtime.GOOS {
	case "windows":
		return []string{
			filepath.Join(home, "Documents", "Serato", "now_playing.txt"),
			filepath.Join(home, "Documents", "now_playing.txt"),
		}
	case "darwin":
		return []string{
			filepath.Join(home, "Music", "Serato", "now_playing.txt"),
			filepath.Join(home, "Documents", "now_playing.txt"),
		}
	default:
		return []string{
			filepath.Join(home, ".config", "serato", "now_playing.txt"),
			filepath.Join(home, "now_playing.txt"),
		}
	}
}

// findActiveTrackFile returns the first candidate that is currently
// active, or empty when none is.
func findActiveTrackFile(cfg *config.CompanionConfig) string {
	for _, path := range trackFileCandidates(cfg) {
		if isActiveTrackFile(path, time.Now()) {
			return path
		}
	}
	return ""
}

// SelectSource picks the detection backend once at startup, honoring
// the configured mode.
//
// A forced mode (text_file, live_playlists) uses only its own backend
// and fails when that backend is unavailable. In auto mode a configured
// live-playlist identity that passes a reachability probe wins;
// otherwise the candidate text files are scanned for an active one,
// waiting a bounded number of attempts for one to appear. Exhausting
// the wait is fatal for the process, with guidance pointing at the
// live-playlist alternative.
func SelectSource(ctx context.Context, cfg *config.CompanionConfig, emit EmitFunc) (TrackSource, error) {
	switch cfg.Source {
	case config.SourceLivePlaylists:
		return selectLivePlaylist(ctx, cfg, emit)
	case config.SourceTextFile:
		return selectTextFile(ctx, cfg, emit)
	}

	// Auto: prefer live playlists when configured and reachable.
	if cfg.LivePlaylistUsername != "" {
		source, err := selectLivePlaylist(ctx, cfg, emit)
		if err == nil {
			return source, nil
		}
		logging.Warn().
			Err(err).
			Str("username", cfg.LivePlaylistUsername).
			Msg("Live playlist not reachable, falling back to text file detection")
	}
	return selectTextFile(ctx, cfg, emit)
}

// selectLivePlaylist probes the configured identity's public page and
// returns the playlist watcher.
func selectLivePlaylist(ctx context.Context, cfg *config.CompanionConfig, emit EmitFunc) (TrackSource, error) {
	if cfg.LivePlaylistUsername == "" {
		return nil, fmt.Errorf("live playlist detection requires COMPANION_LIVE_PLAYLIST_USERNAME")
	}
	if err := ProbeLivePlaylist(ctx, cfg.LivePlaylistUsername); err != nil {
		return nil, fmt.Errorf("live playlist for %q not reachable: %w", cfg.LivePlaylistUsername, err)
	}
	logging.Info().
		Str("username", cfg.LivePlaylistUsername).
		Msg("Using live playlist detection")
	return NewLivePlaylistWatcher(cfg.LivePlaylistUsername, cfg.PlaylistPollInterval, emit), nil
}

// selectTextFile waits a bounded number of attempts for an active track
// file to appear among the candidates.
func selectTextFile(ctx context.Context, cfg *config.CompanionConfig, emit EmitFunc) (TrackSource, error) {
	attempts := cfg.SourceWaitAttempts
	if attempts <= 0 {
		attempts = 60
	}
	delay := cfg.SourceWaitDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if path := findActiveTrackFile(cfg); path != "" {
			logging.Info().Str("path", path).Msg("Using text file detection")
			return NewTextFileWatcher(path, cfg.FilePollInterval, emit), nil
		}

		logging.Info().
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("No active track file found yet, start playing a track in your DJ software")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf(
		"no track source found after %d attempts: enable a now-playing text file in your DJ software, "+
			"or configure COMPANION_LIVE_PLAYLIST_USERNAME to use live playlist detection",
		attempts)
}
