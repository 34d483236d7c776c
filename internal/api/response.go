// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
)

// Error codes returned in the error envelope.
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationError    = "VALIDATION_ERROR"
	ErrCodeAuthError          = "AUTH_ERROR"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// respondJSON writes any payload as JSON with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respondError writes the standard error envelope.
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, &models.APIResponse{
		Success: false,
		Error:   &models.APIError{Code: code, Message: message},
	})
}

// respondAPIError writes a prepared APIError, preserving its code.
func respondAPIError(w http.ResponseWriter, statusCode int, apiErr *models.APIError) {
	respondJSON(w, statusCode, &models.APIResponse{
		Success: false,
		Error:   apiErr,
	})
}

// respondData wraps a payload in the success envelope.
func respondData(w http.ResponseWriter, statusCode int, data any) {
	respondJSON(w, statusCode, &models.APIResponse{
		Success: true,
		Data:    data,
	})
}
