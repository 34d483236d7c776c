// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop within 2s")
		}
	})
	return hub
}

// testClient registers a hub client without a real connection; the
// pumps are never started so the send channel can be read directly.
func testClient(t *testing.T, hub *Hub, djID string) *Client {
	t.Helper()
	client := NewClient(hub, nil, djID)
	hub.Register <- client
	waitFor(t, func() bool { return hub.ClientCountForDJ(djID) > 0 })
	return client
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestHubRoutesPerDJ(t *testing.T) {
	hub := startHub(t)

	alice := testClient(t, hub, "dj-alice")
	bob := testClient(t, hub, "dj-bob")

	play := &models.PlayHistoryRecord{
		ID:     uuid.New(),
		DJID:   "dj-alice",
		Artist: "Drake",
		Title:  "God's Plan",
	}
	hub.BroadcastTrackPlay(play)

	select {
	case msg := <-alice.send:
		if msg.Type != models.WSTypeTrackPlay || msg.DJID != "dj-alice" {
			t.Errorf("message = %+v, want track_play for dj-alice", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alice's client never received the play")
	}

	select {
	case msg := <-bob.send:
		t.Errorf("bob received %+v for another DJ's channel", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubBroadcastRequestMatched(t *testing.T) {
	hub := startHub(t)
	client := testClient(t, hub, "dj-1")

	play := &models.PlayHistoryRecord{ID: uuid.New(), DJID: "dj-1"}
	request := &models.SongRequest{ID: uuid.New(), Status: models.RequestStatusMatched}
	hub.NotifyMatch(play, request)

	select {
	case msg := <-client.send:
		if msg.Type != models.WSTypeRequestMatched {
			t.Errorf("message type = %q, want request_matched", msg.Type)
		}
		payload, ok := msg.Payload.(MatchedPayload)
		if !ok {
			t.Fatalf("payload type = %T, want MatchedPayload", msg.Payload)
		}
		if payload.Request.ID != request.ID {
			t.Errorf("payload request = %s, want %s", payload.Request.ID, request.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never received the match")
	}
}

func TestHubUnregister(t *testing.T) {
	hub := startHub(t)
	client := testClient(t, hub, "dj-1")

	hub.Unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if _, ok := <-client.send; ok {
		t.Error("send channel still open after unregister")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	client := NewClient(hub, nil, "dj-1")
	hub.Register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after cancel")
	}

	if _, ok := <-client.send; ok {
		t.Error("send channel still open after shutdown")
	}
}
