// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spinwire/spinwire/internal/auth"
	"github.com/spinwire/spinwire/internal/config"
)

// Router wires handlers and middleware into the HTTP routing tree.
type Router struct {
	handler       *Handler
	jwtManager    *auth.JWTManager
	chiMiddleware *ChiMiddleware
	trackLimiter  *IntervalLimiter
}

// NewRouter creates a Router from the server configuration.
func NewRouter(cfg *config.Config, handler *Handler, jwtManager *auth.JWTManager) *Router {
	return &Router{
		handler:    handler,
		jwtManager: jwtManager,
		chiMiddleware: NewChiMiddleware(&ChiMiddlewareConfig{
			CORSAllowedOrigins: cfg.Security.CORSOrigins,
			RateLimitRequests:  cfg.Security.RateLimitReqs,
			RateLimitWindow:    cfg.Security.RateLimitWindow,
		}),
		trackLimiter: NewIntervalLimiter(cfg.Security.TrackMinInterval),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	// ========================
	// Health Endpoints
	// ========================
	r.Get("/api/v1/health", router.handler.Health)

	// ========================
	// Authentication Endpoints
	// ========================
	// Strict per-IP limiting on login for brute force prevention
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", router.handler.Login)
	})

	// ========================
	// Ingestion Endpoints
	// ========================
	// Track events additionally carry a per-DJ minimum interval so one
	// runaway companion cannot flood the pipeline.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(PrometheusMetrics)
		r.Use(Authenticate(router.jwtManager))

		r.With(router.trackLimiter.Middleware("/api/v1/track-events")).
			Post("/track-events", router.handler.TrackEvents)
		r.Post("/heartbeat", router.handler.Heartbeat)

		r.Get("/plays", router.handler.Plays)
		r.Get("/connections/{djID}", router.handler.ConnectionStatus)

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", router.handler.RequestCreate)
			r.Get("/", router.handler.RequestList)
			r.Get("/{id}", router.handler.RequestGet)
			r.Put("/{id}/status", router.handler.RequestUpdateStatus)
		})

		r.Get("/ws", router.handler.WebSocket)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
