// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package websocket pushes play, match, and connection updates to
// subscribed dashboard clients on per-DJ channels. Delivery is
// at-most-once: a slow client loses messages rather than blocking the
// pipeline, and consumers can always re-derive state by querying the
// API directly.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/metrics"
	"github.com/spinwire/spinwire/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub maintains the set of active clients and routes messages to the
// clients subscribed to each DJ's channel.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan models.WSMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext starts the hub loop, designed for suture supervision.
// When the context is canceled all clients are closed and ctx.Err() is
// returned so the supervisor can decide whether to restart.
//
// Selection is priority based: shutdown first, then client lifecycle,
// then broadcasts. Go's select picks randomly among ready channels;
// the explicit ordering keeps client state consistent before messages
// are routed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.routeToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(count))
	logging.Info().
		Str("dj_id", client.djID).
		Int("total_clients", count).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(count))
	logging.Info().
		Str("dj_id", client.djID).
		Int("total_clients", count).
		Msg("websocket client disconnected")
}

// routeToClients delivers a message to every client subscribed to the
// message's DJ, in client-ID order so delivery order is reproducible.
// A client whose send buffer is full is dropped; it can reconnect and
// re-query rather than stall everyone else.
func (h *Hub) routeToClients(message models.WSMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.djID == message.DJID {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			metrics.WSMessagesDropped.Inc()
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientCountForDJ returns the number of clients subscribed to a DJ.
func (h *Hub) ClientCountForDJ(djID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for client := range h.clients {
		if client.djID == djID {
			count++
		}
	}
	return count
}

func (h *Hub) enqueue(message models.WSMessage) {
	select {
	case h.broadcast <- message:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().
			Str("message_type", message.Type).
			Str("dj_id", message.DJID).
			Msg("broadcast channel full, dropping message")
	}
}

// BroadcastTrackPlay pushes a newly persisted play to the DJ's channel.
func (h *Hub) BroadcastTrackPlay(play *models.PlayHistoryRecord) {
	h.enqueue(models.WSMessage{
		Type:      models.WSTypeTrackPlay,
		DJID:      play.DJID,
		Payload:   play,
		Timestamp: time.Now().UTC(),
	})
}

// MatchedPayload carries everything a dashboard needs to render
// "matched to request X" without a follow-up query.
type MatchedPayload struct {
	Play    *models.PlayHistoryRecord `json:"play"`
	Request *models.SongRequest       `json:"request"`
}

// BroadcastRequestMatched pushes a match result to the DJ's channel.
func (h *Hub) BroadcastRequestMatched(play *models.PlayHistoryRecord, request *models.SongRequest) {
	h.enqueue(models.WSMessage{
		Type:      models.WSTypeRequestMatched,
		DJID:      play.DJID,
		Payload:   MatchedPayload{Play: play, Request: request},
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastConnectionStatus pushes a connection change to the DJ's channel.
func (h *Hub) BroadcastConnectionStatus(djID string, payload interface{}) {
	h.enqueue(models.WSMessage{
		Type:      models.WSTypeConnectionStatus,
		DJID:      djID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// NotifyMatch implements the matcher's notifier capability.
func (h *Hub) NotifyMatch(play *models.PlayHistoryRecord, request *models.SongRequest) {
	h.BroadcastRequestMatched(play, request)
}
