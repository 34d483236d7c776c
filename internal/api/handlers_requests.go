// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spinwire/spinwire/internal/database"
	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
	"github.com/spinwire/spinwire/internal/normalize"
)

// RequestCreate registers a new pending song request.
func (h *Handler) RequestCreate(w http.ResponseWriter, r *http.Request) {
	var input models.CreateRequestInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	normalizedArtist, normalizedTitle := normalize.Track(input.Artist, input.Title)

	request := &models.SongRequest{
		ID:               uuid.New(),
		OrganizationID:   input.OrganizationID,
		Artist:           input.Artist,
		Title:            input.Title,
		NormalizedArtist: normalizedArtist,
		NormalizedTitle:  normalizedTitle,
		RequesterName:    input.RequesterName,
		Status:           models.RequestStatusPending,
		BoostAmount:      input.BoostAmount,
		CreatedAt:        time.Now().UTC(),
	}

	if err := h.db.CreateRequest(r.Context(), request); err != nil {
		logging.Error().Err(err).Str("organization_id", input.OrganizationID).Msg("Failed to create request")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to create request")
		return
	}

	logging.Info().
		Str("request_id", request.ID.String()).
		Str("organization_id", request.OrganizationID).
		Str("artist", normalizedArtist).
		Str("title", normalizedTitle).
		Msg("Song request created")

	respondData(w, http.StatusCreated, request)
}

// RequestList lists requests for the authenticated DJ's organization,
// optionally filtered by status.
func (h *Handler) RequestList(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Authentication required")
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !validRequestStatus(status) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Unknown request status")
		return
	}

	limit := parseLimit(r, 100, 500)
	requests, err := h.db.ListRequests(r.Context(), claims.OrganizationID, status, limit)
	if err != nil {
		logging.Error().Err(err).Str("organization_id", claims.OrganizationID).Msg("Failed to list requests")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list requests")
		return
	}

	respondData(w, http.StatusOK, requests)
}

// RequestGet returns a single request by ID.
func (h *Handler) RequestGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request ID")
		return
	}

	request, err := h.db.GetRequest(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Request not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("request_id", id.String()).Msg("Failed to load request")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load request")
		return
	}

	respondData(w, http.StatusOK, request)
}

// RequestUpdateStatus applies an expire or cancel transition. Matching
// is never applied through this endpoint; only the ingestion pipeline
// marks requests matched.
func (h *Handler) RequestUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request ID")
		return
	}

	var body struct {
		Status string `json:"status" validate:"required,oneof=expired cancelled"`
	}
	if !decodeAndValidate(w, r, &body) {
		return
	}

	err = h.db.UpdateRequestStatus(r.Context(), id, body.Status)
	switch {
	case errors.Is(err, database.ErrAlreadyMatched):
		respondError(w, http.StatusConflict, ErrCodeConflict, "Request is no longer pending")
	case err != nil:
		logging.Error().Err(err).Str("request_id", id.String()).Msg("Failed to update request status")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to update request status")
	default:
		respondData(w, http.StatusOK, map[string]string{"status": body.Status})
	}
}

func validRequestStatus(status string) bool {
	switch status {
	case models.RequestStatusPending, models.RequestStatusMatched,
		models.RequestStatusExpired, models.RequestStatusCancelled:
		return true
	}
	return false
}

// parseLimit reads the limit query parameter with a default and cap.
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
