// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/models"
)

// testDBSemaphore serializes database creation. Concurrent DuckDB CGO
// initialization can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
	}, 10*time.Minute)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

func testPlay(djID string, playedAt time.Time) *models.PlayHistoryRecord {
	return &models.PlayHistoryRecord{
		DJID:             djID,
		OrganizationID:   "org-1",
		Artist:           "Drake",
		Title:            "God's Plan",
		NormalizedArtist: "drake",
		NormalizedTitle:  "gods plan",
		PlayedAt:         playedAt,
		DetectionMethod:  models.MethodTextFile,
	}
}

func TestInsertPlayDedup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	// Pin the base to a bucket boundary so the +30s play can never
	// land in the next bucket.
	now := time.Now().UTC().Truncate(10 * time.Minute)

	first := testPlay("dj-1", now)
	if err := db.InsertPlay(ctx, first); err != nil {
		t.Fatalf("InsertPlay() first error: %v", err)
	}

	// Same tuple, 30 seconds later: same bucket, must dedup.
	second := testPlay("dj-1", now.Add(30*time.Second))
	err := db.InsertPlay(ctx, second)
	if !errors.Is(err, ErrDuplicatePlay) {
		t.Fatalf("InsertPlay() second = %v, want ErrDuplicatePlay", err)
	}

	// Same song next bucket is a fresh play.
	later := testPlay("dj-1", now.Add(11*time.Minute))
	if err := db.InsertPlay(ctx, later); err != nil {
		t.Errorf("InsertPlay() next bucket error: %v", err)
	}

	// Another DJ playing the same song is never a duplicate.
	otherDJ := testPlay("dj-2", now)
	if err := db.InsertPlay(ctx, otherDJ); err != nil {
		t.Errorf("InsertPlay() other DJ error: %v", err)
	}

	plays, err := db.ListRecentPlays(ctx, "dj-1", 10)
	if err != nil {
		t.Fatalf("ListRecentPlays() error: %v", err)
	}
	if len(plays) != 2 {
		t.Errorf("ListRecentPlays() returned %d plays, want 2", len(plays))
	}
}

func TestSetPlayMatchedRequestOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	play := testPlay("dj-1", time.Now().UTC())
	if err := db.InsertPlay(ctx, play); err != nil {
		t.Fatalf("InsertPlay() error: %v", err)
	}

	reqID := uuid.New()
	if err := db.SetPlayMatchedRequest(ctx, play.ID, reqID); err != nil {
		t.Fatalf("SetPlayMatchedRequest() error: %v", err)
	}

	if err := db.SetPlayMatchedRequest(ctx, play.ID, uuid.New()); err == nil {
		t.Error("SetPlayMatchedRequest() allowed a second assignment")
	}

	got, err := db.GetPlay(ctx, play.ID)
	if err != nil {
		t.Fatalf("GetPlay() error: %v", err)
	}
	if got.MatchedRequestID == nil || *got.MatchedRequestID != reqID {
		t.Errorf("play matched_request_id = %v, want %s", got.MatchedRequestID, reqID)
	}
}

func testRequest(orgID string, createdAt time.Time) *models.SongRequest {
	return &models.SongRequest{
		OrganizationID:   orgID,
		Artist:           "Drake",
		Title:            "God's Plan",
		NormalizedArtist: "drake",
		NormalizedTitle:  "gods plan",
		RequesterName:    "alex",
		CreatedAt:        createdAt,
	}
}

func TestMarkRequestMatchedGuard(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	req := testRequest("org-1", time.Now().UTC())
	if err := db.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest() error: %v", err)
	}

	playID := uuid.New()
	if err := db.MarkRequestMatched(ctx, req.ID, playID, time.Now()); err != nil {
		t.Fatalf("MarkRequestMatched() error: %v", err)
	}

	err := db.MarkRequestMatched(ctx, req.ID, uuid.New(), time.Now())
	if !errors.Is(err, ErrAlreadyMatched) {
		t.Errorf("MarkRequestMatched() second = %v, want ErrAlreadyMatched", err)
	}

	got, err := db.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest() error: %v", err)
	}
	if got.Status != models.RequestStatusMatched {
		t.Errorf("request status = %q, want matched", got.Status)
	}
	if got.MatchedPlayID == nil || *got.MatchedPlayID != playID {
		t.Errorf("matched_play_id = %v, want %s", got.MatchedPlayID, playID)
	}
}

func TestListPendingRequestsInWindow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	playedAt := time.Now().UTC()
	window := 3 * time.Hour

	inWindow := testRequest("org-1", playedAt.Add(-10*time.Minute))
	tooOld := testRequest("org-1", playedAt.Add(-4*time.Hour))
	future := testRequest("org-1", playedAt.Add(10*time.Minute))
	otherOrg := testRequest("org-2", playedAt.Add(-10*time.Minute))
	oldest := testRequest("org-1", playedAt.Add(-20*time.Minute))

	for _, r := range []*models.SongRequest{inWindow, tooOld, future, otherOrg, oldest} {
		if err := db.CreateRequest(ctx, r); err != nil {
			t.Fatalf("CreateRequest() error: %v", err)
		}
	}

	matched := testRequest("org-1", playedAt.Add(-5*time.Minute))
	if err := db.CreateRequest(ctx, matched); err != nil {
		t.Fatalf("CreateRequest() error: %v", err)
	}
	if err := db.MarkRequestMatched(ctx, matched.ID, uuid.New(), playedAt); err != nil {
		t.Fatalf("MarkRequestMatched() error: %v", err)
	}

	candidates, err := db.ListPendingRequestsInWindow(ctx, "org-1", playedAt, window)
	if err != nil {
		t.Fatalf("ListPendingRequestsInWindow() error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 (oldest and inWindow)", len(candidates))
	}
	if candidates[0].ID != oldest.ID {
		t.Errorf("candidates not ordered oldest first: got %s", candidates[0].ID)
	}
	if candidates[1].ID != inWindow.ID {
		t.Errorf("second candidate = %s, want %s", candidates[1].ID, inWindow.ID)
	}
}

func TestUpsertConnectionStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	status := &models.ConnectionStatus{
		DJID:            "dj-1",
		OrganizationID:  "org-1",
		IsConnected:     true,
		LastHeartbeat:   time.Now().UTC(),
		Platform:        "darwin",
		AppVersion:      "1.4.2",
		DetectionMethod: models.MethodTextFile,
	}
	if err := db.UpsertConnectionStatus(ctx, status); err != nil {
		t.Fatalf("UpsertConnectionStatus() error: %v", err)
	}

	later := time.Now().UTC().Add(time.Minute)
	status.LastHeartbeat = later
	status.DetectionMethod = models.MethodLivePlaylists
	if err := db.UpsertConnectionStatus(ctx, status); err != nil {
		t.Fatalf("UpsertConnectionStatus() second error: %v", err)
	}

	got, err := db.GetConnectionStatus(ctx, "dj-1")
	if err != nil {
		t.Fatalf("GetConnectionStatus() error: %v", err)
	}
	if !got.IsConnected {
		t.Error("status not connected after upsert")
	}
	if got.DetectionMethod != models.MethodLivePlaylists {
		t.Errorf("detection method = %q, want live_playlists", got.DetectionMethod)
	}
	if !got.LastHeartbeat.Truncate(time.Second).Equal(later.Truncate(time.Second)) {
		t.Errorf("last heartbeat = %s, want %s", got.LastHeartbeat, later)
	}

	if err := db.SetDisconnected(ctx, "dj-1"); err != nil {
		t.Fatalf("SetDisconnected() error: %v", err)
	}
	got, _ = db.GetConnectionStatus(ctx, "dj-1")
	if got.IsConnected {
		t.Error("status still connected after SetDisconnected")
	}

	if _, err := db.GetConnectionStatus(ctx, "dj-unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetConnectionStatus(unknown) = %v, want ErrNotFound", err)
	}
}

func TestAccounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	account := &models.DJAccount{
		Username:       "djshadow",
		PasswordHash:   "$2a$12$fakehashfortestingonly",
		DJID:           "dj-1",
		OrganizationID: "org-1",
	}
	if err := db.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount() error: %v", err)
	}

	if err := db.CreateAccount(ctx, &models.DJAccount{
		Username:     "djshadow",
		PasswordHash: "other",
		DJID:         "dj-2",
	}); err == nil {
		t.Error("CreateAccount() allowed duplicate username")
	}

	got, err := db.GetAccountByUsername(ctx, "djshadow")
	if err != nil {
		t.Fatalf("GetAccountByUsername() error: %v", err)
	}
	if got.DJID != "dj-1" || got.Role != "dj" {
		t.Errorf("account = %+v, want dj-1 with default role dj", got)
	}

	if _, err := db.GetAccountByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAccountByUsername(nobody) = %v, want ErrNotFound", err)
	}
}
