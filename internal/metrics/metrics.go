// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package metrics provides Prometheus instrumentation for the Spinwire
// server: ingestion throughput, dedup suppression, request matching,
// rate limiting, database latency, and websocket fan-out.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	TrackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "track_events_total",
			Help: "Total number of track events received, by detection method and outcome",
		},
		[]string{"detection_method", "outcome"}, // outcome: "persisted", "duplicate", "invalid"
	)

	TrackEventDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "track_event_duration_seconds",
			Help:    "End-to-end duration of track event ingestion in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	HeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeats_total",
			Help: "Total number of heartbeats received",
		},
	)

	// Matcher Metrics
	MatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_attempts_total",
			Help: "Total number of request match attempts, by result",
		},
		[]string{"result"}, // "exact", "fuzzy", "none", "error"
	)

	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_duration_seconds",
			Help:    "Duration of matcher runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	AuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of rejected bearer tokens",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped on slow clients",
		},
	)

	// Liveness Metrics
	ConnectedDJs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connected_djs",
			Help: "Current number of DJs with a live companion connection",
		},
	)
)

// RecordTrackEvent records one ingested track event.
func RecordTrackEvent(method, outcome string, duration time.Duration) {
	TrackEventsTotal.WithLabelValues(method, outcome).Inc()
	TrackEventDuration.Observe(duration.Seconds())
}

// RecordMatchAttempt records one matcher run.
func RecordMatchAttempt(result string, duration time.Duration) {
	MatchAttemptsTotal.WithLabelValues(result).Inc()
	MatchDuration.Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
