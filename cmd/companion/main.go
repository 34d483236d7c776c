// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package main is the entry point for the Spinwire companion.
//
// The companion runs on the DJ's machine alongside their DJ software,
// detects the currently playing track, and reports it to the Spinwire
// server. Detection is file-based (Serato's now_playing.txt or a
// user-configured text file) or scraped from Serato Live Playlists.
//
// # Configuration
//
// Settings are loaded the same way as the server (Koanf v2: environment
// over config file over defaults). The companion-specific variables:
//
//   - COMPANION_SERVER_URL: Spinwire server base URL (default http://127.0.0.1:8090)
//   - COMPANION_USERNAME: DJ account username (required)
//   - COMPANION_PASSWORD: DJ account password (prompted interactively when empty)
//   - COMPANION_SOURCE: auto, text_file, or live_playlists (default auto)
//   - COMPANION_TEXT_FILE_PATH: Explicit track file path (overrides auto-detection)
//   - COMPANION_LIVE_PLAYLIST_USERNAME: Serato username for live playlist scraping
//   - COMPANION_TOKEN_CACHE_PATH: BadgerDB directory for cached auth tokens
//
// # Lifecycle
//
// Startup authenticates against the server, selects a track source, and
// runs the source and the heartbeat loop under a supervisor tree. On
// SIGINT/SIGTERM the source stops first, then a best-effort disconnect
// heartbeat is sent so the dashboard shows the DJ as offline immediately.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spinwire/spinwire/internal/companion"
	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
	"github.com/spinwire/spinwire/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := cfg.ValidateCompanion(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid companion configuration")
	}

	comp := &cfg.Companion
	logging.Info().
		Str("server", comp.ServerURL).
		Str("username", comp.Username).
		Str("source", comp.Source).
		Msg("Starting Spinwire companion")

	password := comp.Password
	if password == "" {
		password, err = companion.PromptPassword(comp.Username)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to read password")
		}
	}

	// Token cache is optional; a broken cache never blocks startup.
	var cache *companion.TokenCache
	if comp.TokenCachePath != "" {
		cache, err = companion.OpenTokenCache(comp.TokenCachePath)
		if err != nil {
			logging.Warn().Err(err).Str("path", comp.TokenCachePath).
				Msg("Failed to open token cache, continuing without it")
			cache = nil
		} else {
			defer func() {
				if err := cache.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing token cache")
				}
			}()
		}
	}

	client := companion.NewClient(comp.ServerURL, comp.Username, password, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := client.Authenticate(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Authentication failed")
	}
	logging.Info().Msg("Authenticated with server")

	// The source is selected before the runtime exists, so the emit
	// closure binds late. The source only runs once supervised, after
	// rt is assigned.
	var rt *companion.Runtime
	emit := func(event models.TrackEvent) {
		rt.HandleTrack(ctx, event)
	}

	source, err := companion.SelectSource(ctx, comp, emit)
	if err != nil {
		logging.Fatal().Err(err).Msg("No track source available")
	}
	rt = companion.NewRuntime(comp, client, source)
	logging.Info().
		Str("method", source.Method()).
		Str("source_file", source.SourceFile()).
		Msg("Track source selected")

	tree := supervisor.NewTree("spinwire-companion", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(companion.NewSourceService(rt))
	tree.AddAPIService(companion.NewHeartbeatService(client, source, comp.HeartbeatInterval))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	// Best-effort disconnect after the source and heartbeat have stopped.
	rt.Shutdown()

	logging.Info().Msg("Spinwire companion stopped")
}
