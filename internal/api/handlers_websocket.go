// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package api

import (
	"net/http"

	"github.com/spinwire/spinwire/internal/logging"
	ws "github.com/spinwire/spinwire/internal/websocket"
)

// WebSocket upgrades a dashboard connection and subscribes it to one
// DJ's event stream. The dj_id query parameter selects the stream;
// absent, the caller's own DJ identity is used.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable")
		return
	}

	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, ErrCodeAuthError, "Authentication required")
		return
	}

	djID := r.URL.Query().Get("dj_id")
	if djID == "" {
		djID = claims.DJID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, djID)
	h.hub.Register <- client
	client.Start()

	logging.Debug().
		Str("dj_id", djID).
		Uint64("client_id", client.ID()).
		Msg("WebSocket client connected")
}
