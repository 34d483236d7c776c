// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spinwire/spinwire/internal/database"
	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/metrics"
	"github.com/spinwire/spinwire/internal/models"
	"github.com/spinwire/spinwire/internal/normalize"
)

// TrackEvents ingests a detected track play.
//
// The pipeline is: normalize, persist (dedup), refresh connection
// status, match against pending requests, broadcast. A duplicate play is
// acknowledged as success without re-running the matcher, so a file
// re-scan cannot double-match a request. A matcher failure degrades to
// an unmatched play rather than failing the ingestion.
func (h *Handler) TrackEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Authentication required")
		return
	}

	var req models.TrackEventRequest
	if !decodeAndValidate(w, r, &req) {
		metrics.RecordTrackEvent("unknown", "invalid", time.Since(start))
		return
	}

	normalizedArtist, normalizedTitle := normalize.Track(req.Track.Artist, req.Track.Title)

	sourceFile := req.Track.SourceFile
	if sourceFile == "" {
		sourceFile = req.SourceFile
	}

	play := &models.PlayHistoryRecord{
		ID:               uuid.New(),
		DJID:             claims.DJID,
		OrganizationID:   claims.OrganizationID,
		Artist:           req.Track.Artist,
		Title:            req.Track.Title,
		NormalizedArtist: normalizedArtist,
		NormalizedTitle:  normalizedTitle,
		PlayedAt:         req.Track.PlayedAt.UTC(),
		DetectionMethod:  req.DetectionMethod,
		SourceFile:       sourceFile,
	}

	err := h.db.InsertPlay(r.Context(), play)
	if errors.Is(err, database.ErrDuplicatePlay) {
		h.refreshConnection(r, claims.DJID, claims.OrganizationID, req.Platform, req.AppVersion, req.DetectionMethod)
		metrics.RecordTrackEvent(req.DetectionMethod, "duplicate", time.Since(start))
		logging.Debug().
			Str("dj_id", claims.DJID).
			Str("artist", normalizedArtist).
			Str("title", normalizedTitle).
			Msg("Duplicate play suppressed")
		respondJSON(w, http.StatusOK, &models.TrackEventResponse{
			Success:   true,
			Duplicate: true,
			Matched:   false,
		})
		return
	}
	if err != nil {
		metrics.RecordTrackEvent(req.DetectionMethod, "invalid", time.Since(start))
		logging.Error().Err(err).Str("dj_id", claims.DJID).Msg("Failed to persist play")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to persist play")
		return
	}

	h.refreshConnection(r, claims.DJID, claims.OrganizationID, req.Platform, req.AppVersion, req.DetectionMethod)

	result, err := h.matcher.Match(r.Context(), play)
	if err != nil {
		logging.Error().Err(err).Str("play_id", play.ID.String()).Msg("Match attempt failed, play kept unmatched")
		result = &models.MatchResult{Matched: false}
	}

	h.hub.BroadcastTrackPlay(play)

	metrics.RecordTrackEvent(req.DetectionMethod, "persisted", time.Since(start))

	playID := play.ID
	respondJSON(w, http.StatusOK, &models.TrackEventResponse{
		Success:          true,
		PlayID:           &playID,
		Matched:          result.Matched,
		MatchedRequestID: result.MatchedRequestID,
	})
}

// refreshConnection upserts the DJ's connection status as a side effect
// of any companion contact. Failures are logged but never fail the
// request that carried the signal.
func (h *Handler) refreshConnection(r *http.Request, djID, orgID, platform, appVersion, method string) {
	now := time.Now().UTC()
	status := &models.ConnectionStatus{
		DJID:            djID,
		OrganizationID:  orgID,
		IsConnected:     true,
		LastHeartbeat:   now,
		Platform:        platform,
		AppVersion:      appVersion,
		DetectionMethod: method,
		UpdatedAt:       now,
	}

	if err := h.db.UpsertConnectionStatus(r.Context(), status); err != nil {
		logging.Warn().Err(err).Str("dj_id", djID).Msg("Failed to refresh connection status")
		return
	}

	h.hub.BroadcastConnectionStatus(djID, h.liveness.View(status, now))
}

// Heartbeat records companion liveness. A disconnecting heartbeat flips
// the DJ offline immediately instead of waiting out the staleness
// window.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Authentication required")
		return
	}

	var req models.HeartbeatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	metrics.HeartbeatsTotal.Inc()

	if req.Disconnecting {
		err := h.db.SetDisconnected(r.Context(), claims.DJID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			logging.Error().Err(err).Str("dj_id", claims.DJID).Msg("Failed to record disconnect")
			respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to record disconnect")
			return
		}

		logging.Info().Str("dj_id", claims.DJID).Msg("Companion disconnected gracefully")
		if status, err := h.db.GetConnectionStatus(r.Context(), claims.DJID); err == nil {
			h.hub.BroadcastConnectionStatus(claims.DJID, h.liveness.View(status, time.Now().UTC()))
		}
		respondJSON(w, http.StatusOK, &models.HeartbeatResponse{Success: true})
		return
	}

	h.refreshConnection(r, claims.DJID, claims.OrganizationID, req.Platform, req.AppVersion, req.DetectionMethod)
	respondJSON(w, http.StatusOK, &models.HeartbeatResponse{Success: true})
}

// ConnectionStatus returns the liveness view for one DJ.
func (h *Handler) ConnectionStatus(w http.ResponseWriter, r *http.Request) {
	djID := chi.URLParam(r, "djID")
	if djID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "DJ ID required")
		return
	}

	status, err := h.db.GetConnectionStatus(r.Context(), djID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No connection recorded for DJ")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("dj_id", djID).Msg("Failed to load connection status")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load connection status")
		return
	}

	respondData(w, http.StatusOK, h.liveness.View(status, time.Now().UTC()))
}

// Plays lists the most recent plays for the authenticated DJ.
func (h *Handler) Plays(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Authentication required")
		return
	}

	limit := parseLimit(r, 50, 500)
	plays, err := h.db.ListRecentPlays(r.Context(), claims.DJID, limit)
	if err != nil {
		logging.Error().Err(err).Str("dj_id", claims.DJID).Msg("Failed to list plays")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list plays")
		return
	}

	respondData(w, http.StatusOK, plays)
}
