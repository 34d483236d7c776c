// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package models defines data structures shared between the Spinwire server
// and the companion process. These models represent detected track events,
// stored play history, song requests, connection status, and API payloads.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Detection methods reported by companion sources and other producers.
// The server stores the method verbatim on each play so downstream
// consumers can distinguish automatic detection from manual entry.
const (
	MethodTextFile      = "text_file"
	MethodSeratoHistory = "serato_history"
	MethodLivePlaylists = "live_playlists"
	MethodWebsocket     = "websocket"
	MethodManual        = "manual"
)

// ValidDetectionMethods enumerates every accepted detection_method value.
var ValidDetectionMethods = map[string]bool{
	MethodTextFile:      true,
	MethodSeratoHistory: true,
	MethodLivePlaylists: true,
	MethodWebsocket:     true,
	MethodManual:        true,
}

// TrackEvent is an in-flight track detection produced by a companion
// detection backend. It is never persisted directly; the ingestion
// pipeline transforms it into a PlayHistoryRecord.
//
// Artist and Title carry the raw text as detected. Normalization happens
// server-side so that every producer benefits from the same rules.
type TrackEvent struct {
	Artist     string    `json:"artist" validate:"required,max=512"`
	Title      string    `json:"title" validate:"required,max=512"`
	PlayedAt   time.Time `json:"played_at" validate:"required"`
	Deck       *int      `json:"deck,omitempty" validate:"omitempty,min=1,max=8"`
	BPM        *float64  `json:"bpm,omitempty" validate:"omitempty,min=0,max=1000"`
	SourceFile string    `json:"source_file,omitempty" validate:"max=1024"`
}

// TrackEventRequest is the POST /api/v1/track-events payload. The DJ and
// organization identity come from the bearer token, not the body.
type TrackEventRequest struct {
	Track           TrackEvent `json:"track" validate:"required"`
	DetectionMethod string     `json:"detection_method" validate:"required,detection_method"`
	SourceFile      string     `json:"source_file,omitempty" validate:"max=1024"`
	Platform        string     `json:"platform" validate:"required,max=64"`
	AppVersion      string     `json:"app_version" validate:"required,max=64"`
}

// TrackEventResponse is returned by POST /api/v1/track-events.
//
// Duplicate is true when the play was suppressed by the dedup constraint;
// the request still succeeds and no new match attempt is made.
type TrackEventResponse struct {
	Success          bool       `json:"success"`
	PlayID           *uuid.UUID `json:"play_id,omitempty"`
	Duplicate        bool       `json:"duplicate,omitempty"`
	Matched          bool       `json:"matched"`
	MatchedRequestID *uuid.UUID `json:"matched_request_id,omitempty"`
}

// PlayHistoryRecord is a persisted, normalized track play. Append-only:
// the only mutation ever applied is setting MatchedRequestID once.
//
// NormalizedArtist and NormalizedTitle are derived server-side and feed
// both the dedup unique constraint and request matching. TimeBucket is
// PlayedAt truncated to the dedup window so a re-detected track within
// the same bucket is treated as a duplicate rather than a second play.
type PlayHistoryRecord struct {
	ID               uuid.UUID  `json:"id"`
	DJID             string     `json:"dj_id"`
	OrganizationID   string     `json:"organization_id,omitempty"`
	Artist           string     `json:"artist"`
	Title            string     `json:"title"`
	NormalizedArtist string     `json:"normalized_artist"`
	NormalizedTitle  string     `json:"normalized_title"`
	PlayedAt         time.Time  `json:"played_at"`
	TimeBucket       time.Time  `json:"-"`
	DetectionMethod  string     `json:"detection_method"`
	SourceFile       string     `json:"source_file,omitempty"`
	MatchedRequestID *uuid.UUID `json:"matched_request_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Song request states. A request is created pending and transitions to
// matched at most once. Expired and cancelled are set by the external
// queue lifecycle, never by the matcher.
const (
	RequestStatusPending   = "pending"
	RequestStatusMatched   = "matched"
	RequestStatusExpired   = "expired"
	RequestStatusCancelled = "cancelled"
)

// SongRequest is an audience request waiting to be matched against
// detected plays.
type SongRequest struct {
	ID               uuid.UUID  `json:"id"`
	OrganizationID   string     `json:"organization_id"`
	Artist           string     `json:"artist"`
	Title            string     `json:"title"`
	NormalizedArtist string     `json:"normalized_artist"`
	NormalizedTitle  string     `json:"normalized_title"`
	RequesterName    string     `json:"requester_name,omitempty"`
	Status           string     `json:"status"`
	BoostAmount      *int       `json:"boost_amount,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	MatchedAt        *time.Time `json:"matched_at,omitempty"`
	MatchedPlayID    *uuid.UUID `json:"matched_play_id,omitempty"`
}

// CreateRequestInput is the POST /api/v1/requests payload.
type CreateRequestInput struct {
	OrganizationID string `json:"organization_id" validate:"required,max=128"`
	Artist         string `json:"artist" validate:"required,max=512"`
	Title          string `json:"title" validate:"required,max=512"`
	RequesterName  string `json:"requester_name,omitempty" validate:"max=256"`
	BoostAmount    *int   `json:"boost_amount,omitempty" validate:"omitempty,min=0"`
}

// MatchResult is the matcher's answer for a single play.
type MatchResult struct {
	Matched          bool       `json:"matched"`
	MatchedRequestID *uuid.UUID `json:"matched_request_id,omitempty"`
	Exact            bool       `json:"exact,omitempty"`
	Score            float64    `json:"score,omitempty"`
}

// ConnectionStatus tracks the most recent contact from a DJ's companion
// process. LastHeartbeat advances on every track event and heartbeat.
//
// IsConnected alone is not trusted by observers: liveness additionally
// requires LastHeartbeat to be within the staleness threshold, since a
// crashed companion never sends its disconnect notice.
type ConnectionStatus struct {
	DJID            string    `json:"dj_id"`
	OrganizationID  string    `json:"organization_id,omitempty"`
	IsConnected     bool      `json:"is_connected"`
	LastHeartbeat   time.Time `json:"last_heartbeat"`
	Platform        string    `json:"platform,omitempty"`
	AppVersion      string    `json:"app_version,omitempty"`
	DetectionMethod string    `json:"detection_method,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HeartbeatRequest is the POST /api/v1/heartbeat payload. Disconnecting
// marks a graceful companion shutdown so dashboards can show the DJ
// offline immediately instead of waiting out the staleness window.
type HeartbeatRequest struct {
	Platform        string `json:"platform" validate:"required,max=64"`
	AppVersion      string `json:"app_version" validate:"required,max=64"`
	DetectionMethod string `json:"detection_method,omitempty" validate:"omitempty,detection_method"`
	Disconnecting   bool   `json:"disconnecting,omitempty"`
}

// HeartbeatResponse is the boolean acknowledgment for a heartbeat.
type HeartbeatResponse struct {
	Success bool `json:"success"`
}

// LoginRequest is the POST /api/v1/auth/login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=512"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DJID      string    `json:"dj_id"`
}

// DJAccount is a credentialed DJ login. PasswordHash is a bcrypt hash;
// plaintext passwords are never stored.
type DJAccount struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	DJID           string    `json:"dj_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// APIError is the error envelope for non-2xx responses.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the generic response envelope.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// WSMessage is a message pushed to dashboard websocket clients.
type WSMessage struct {
	Type      string    `json:"type"`
	DJID      string    `json:"dj_id"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Websocket message types.
const (
	WSTypeTrackPlay        = "track_play"
	WSTypeRequestMatched   = "request_matched"
	WSTypeConnectionStatus = "connection_status"
)
