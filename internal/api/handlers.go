// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package api provides the HTTP surface of the Spinwire server: track
// event ingestion, heartbeats, song requests, connection status, and the
// dashboard websocket.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/spinwire/spinwire/internal/auth"
	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/database"
	"github.com/spinwire/spinwire/internal/liveness"
	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/matcher"
	"github.com/spinwire/spinwire/internal/models"
	"github.com/spinwire/spinwire/internal/validation"
	ws "github.com/spinwire/spinwire/internal/websocket"
)

// Handler holds dependencies for all HTTP handlers.
type Handler struct {
	config        *config.Config
	db            *database.DB
	authenticator *auth.Authenticator
	matcher       *matcher.Matcher
	hub           *ws.Hub
	liveness      *liveness.Tracker
	upgrader      websocket.Upgrader
}

// NewHandler creates a Handler with all dependencies wired.
func NewHandler(cfg *config.Config, db *database.DB, authenticator *auth.Authenticator, m *matcher.Matcher, hub *ws.Hub, tracker *liveness.Tracker) *Handler {
	return &Handler{
		config:        cfg,
		db:            db,
		authenticator: authenticator,
		matcher:       m,
		hub:           hub,
		liveness:      tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     makeOriginChecker(cfg.Security.CORSOrigins),
		},
	}
}

// makeOriginChecker builds the websocket origin check from the CORS
// allowlist. Requests without an Origin header (native companions, CLI
// tools) are always accepted.
func makeOriginChecker(allowed []string) func(r *http.Request) bool {
	allowAll := false
	allowset := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		allowset[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		return allowset[origin]
	}
}

// decodeAndValidate parses a JSON body into dst and runs struct
// validation. It writes the error response itself and reports whether
// the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return false
	}

	return true
}

// Login authenticates a DJ and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.authenticator.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Invalid username or password")
			return
		}
		logging.Error().Err(err).Msg("Login failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Login failed")
		return
	}

	logging.Info().Str("username", req.Username).Str("dj_id", resp.DJID).Msg("DJ logged in")
	respondData(w, http.StatusOK, resp)
}

// Health reports process and database health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	statusCode := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		logging.Error().Err(err).Msg("Health check database ping failed")
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
