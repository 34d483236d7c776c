// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package main is the entry point for the Spinwire server application.
//
// Spinwire receives track-play events from companion processes running
// alongside DJ software, matches them against audience song requests, and
// pushes live updates to connected dashboards over WebSocket.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Database: Initialize DuckDB for plays, requests, and connection state
//  3. WebSocket Hub: Enable real-time updates to connected dashboards
//  4. Authentication: JWT token issuance and validation for DJ accounts
//  5. Matcher: Fuzzy request matching against incoming track plays
//  6. HTTP Server: REST API plus WebSocket upgrade endpoint
//
// All long-running components run under a suture supervisor tree and are
// restarted on failure with exponential backoff.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables
//   - Config file (spinwire.yaml, or SPINWIRE_CONFIG)
//   - Built-in defaults
//
// Required settings:
//   - JWT_SECRET: 32+ character secret for token signing
//   - ADMIN_USERNAME: DJ account username
//   - ADMIN_PASSWORD: DJ account password (8+ characters)
//
// Common settings:
//   - HTTP_HOST / HTTP_PORT: Listen address (default 0.0.0.0:8090)
//   - DUCKDB_PATH: Database file path (default /data/spinwire.duckdb)
//   - MATCH_WINDOW: How far back pending requests are considered (default 3h)
//   - FUZZY_THRESHOLD: Minimum similarity for a fuzzy match (default 0.85)
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes WebSocket clients and the database connection
//
// # Example Usage
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export ADMIN_USERNAME=dj
//	export ADMIN_PASSWORD=secure-password
//	export DUCKDB_PATH=./spinwire.duckdb
//	./spinwire-server
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spinwire/spinwire/internal/api"
	"github.com/spinwire/spinwire/internal/auth"
	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/database"
	"github.com/spinwire/spinwire/internal/liveness"
	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/matcher"
	"github.com/spinwire/spinwire/internal/supervisor"
	"github.com/spinwire/spinwire/internal/supervisor/services"
	ws "github.com/spinwire/spinwire/internal/websocket"
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

	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Spinwire server")

	db, err := database.New(&cfg.Database, cfg.Matcher.DedupBucket)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Supervisor tree restarts the hub and HTTP server on failure
	slogLogger := logging.NewSlogLogger()
	tree := supervisor.NewTree("spinwire", slogLogger, supervisor.DefaultTreeConfig())

	wsHub := ws.NewHub()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	authenticator, err := auth.NewAuthenticator(db, jwtManager, &cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authenticator")
	}
	logging.Info().Msg("JWT authentication enabled")

	m := matcher.New(db, wsHub, cfg.Matcher.MatchWindow, cfg.Matcher.FuzzyThreshold)
	logging.Info().
		Dur("window", cfg.Matcher.MatchWindow).
		Float64("threshold", cfg.Matcher.FuzzyThreshold).
		Msg("Request matcher initialized")

	tracker := liveness.New(cfg.Liveness.StalenessThreshold)

	handler := api.NewHandler(cfg, db, authenticator, m, wsHub, tracker)
	router := api.NewRouter(cfg, handler, jwtManager)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	logging.Info().Msg("WebSocket hub added to supervisor tree")

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor finishes shutting down
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Spinwire server stopped gracefully")
}
