// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/spinwire/spinwire/internal/models"
)

func trackEventBody(artist, title string, playedAt time.Time) *models.TrackEventRequest {
	return &models.TrackEventRequest{
		Track: models.TrackEvent{
			Artist:   artist,
			Title:    title,
			PlayedAt: playedAt,
		},
		DetectionMethod: models.MethodTextFile,
		SourceFile:      "/tmp/now_playing.txt",
		Platform:        "linux",
		AppVersion:      "test",
	}
}

func TestTrackEventPipeline(t *testing.T) {
	ts := setupServer(t, 0)

	// A pending request for the same song, created before the play.
	rec := ts.do(t, http.MethodPost, "/api/v1/requests/", ts.token, &models.CreateRequestInput{
		OrganizationID: "org-1",
		Artist:         "Bicep",
		Title:          "Glue",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create request status = %d", rec.Code)
	}
	var created struct {
		Data models.SongRequest `json:"data"`
	}
	decodeBody(t, rec, &created)

	// Captured after the create so created_at <= played_at holds, as the
	// match window requires.
	now := time.Now().UTC()

	rec = ts.do(t, http.MethodPost, "/api/v1/track-events", ts.token,
		trackEventBody("Bicep", "Glue", now))
	if rec.Code != http.StatusOK {
		t.Fatalf("track event status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Ingestion responses are raw, not enveloped.
	var resp models.TrackEventResponse
	decodeBody(t, rec, &resp)
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.PlayID == nil {
		t.Fatal("play_id missing")
	}
	if !resp.Matched {
		t.Fatal("play did not match the pending request")
	}
	if resp.MatchedRequestID == nil || *resp.MatchedRequestID != created.Data.ID {
		t.Errorf("matched_request_id = %v, want %s", resp.MatchedRequestID, created.Data.ID)
	}

	t.Run("request transitioned to matched", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/requests/"+created.Data.ID.String(), ts.token, nil)
		var got struct {
			Data models.SongRequest `json:"data"`
		}
		decodeBody(t, rec, &got)
		if got.Data.Status != models.RequestStatusMatched {
			t.Errorf("status = %q, want matched", got.Data.Status)
		}
		if got.Data.MatchedPlayID == nil || *got.Data.MatchedPlayID != *resp.PlayID {
			t.Errorf("matched_play_id = %v, want %s", got.Data.MatchedPlayID, resp.PlayID)
		}
	})

	t.Run("duplicate play acknowledged without rematching", func(t *testing.T) {
		// Second pending request for the same song. A re-scan of the
		// same play must not consume it.
		rec := ts.do(t, http.MethodPost, "/api/v1/requests/", ts.token, &models.CreateRequestInput{
			OrganizationID: "org-1",
			Artist:         "Bicep",
			Title:          "Glue",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create request status = %d", rec.Code)
		}

		rec = ts.do(t, http.MethodPost, "/api/v1/track-events", ts.token,
			trackEventBody("Bicep", "Glue", now))
		if rec.Code != http.StatusOK {
			t.Fatalf("duplicate status = %d", rec.Code)
		}

		var dup models.TrackEventResponse
		decodeBody(t, rec, &dup)
		if !dup.Success || !dup.Duplicate {
			t.Errorf("response = %+v, want duplicate success", dup)
		}
		if dup.Matched || dup.PlayID != nil {
			t.Errorf("duplicate must not match or carry a play id: %+v", dup)
		}
	})

	t.Run("plays listed for the dj", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/plays", ts.token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("plays status = %d", rec.Code)
		}
		var list struct {
			Data []models.PlayHistoryRecord `json:"data"`
		}
		decodeBody(t, rec, &list)
		if len(list.Data) != 1 {
			t.Fatalf("plays = %d, want the single deduped play", len(list.Data))
		}
		if list.Data[0].DJID != "dj-1" {
			t.Errorf("dj_id = %q", list.Data[0].DJID)
		}
	})
}

func TestTrackEventValidation(t *testing.T) {
	ts := setupServer(t, 0)

	body := trackEventBody("", "Glue", time.Now().UTC())
	rec := ts.do(t, http.MethodPost, "/api/v1/track-events", ts.token, body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing artist: status = %d", rec.Code)
	}

	body = trackEventBody("Bicep", "Glue", time.Now().UTC())
	body.DetectionMethod = "telepathy"
	rec = ts.do(t, http.MethodPost, "/api/v1/track-events", ts.token, body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad detection method: status = %d", rec.Code)
	}
}

func TestTrackEventRateLimit(t *testing.T) {
	ts := setupServer(t, 2*time.Second)
	now := time.Now().UTC()

	rec := ts.do(t, http.MethodPost, "/api/v1/track-events", ts.token,
		trackEventBody("Bicep", "Glue", now))
	if rec.Code != http.StatusOK {
		t.Fatalf("first event status = %d", rec.Code)
	}

	// Inside the minimum interval: rejected before any side effect.
	rec = ts.do(t, http.MethodPost, "/api/v1/track-events", ts.token,
		trackEventBody("Overmono", "So U Kno", now))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second event status = %d, want 429", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeRateLimited {
		t.Errorf("error code = %q", code)
	}

	plays, err := ts.db.ListRecentPlays(context.Background(), "dj-1", 10)
	if err != nil {
		t.Fatalf("list plays: %v", err)
	}
	if len(plays) != 1 {
		t.Errorf("plays = %d, want throttled event not persisted", len(plays))
	}
}

func TestHeartbeatAndConnectionStatus(t *testing.T) {
	ts := setupServer(t, 0)

	rec := ts.do(t, http.MethodPost, "/api/v1/heartbeat", ts.token, &models.HeartbeatRequest{
		Platform:        "darwin",
		AppVersion:      "test",
		DetectionMethod: models.MethodTextFile,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("heartbeat status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var hb models.HeartbeatResponse
	decodeBody(t, rec, &hb)
	if !hb.Success {
		t.Error("heartbeat success = false")
	}

	t.Run("connection live after heartbeat", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/connections/dj-1", ts.token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("connections status = %d", rec.Code)
		}
		var view struct {
			Data struct {
				models.ConnectionStatus
				Live bool `json:"live"`
			} `json:"data"`
		}
		decodeBody(t, rec, &view)
		if !view.Data.Live || !view.Data.IsConnected {
			t.Errorf("view = %+v, want live", view.Data)
		}
		if view.Data.Platform != "darwin" {
			t.Errorf("platform = %q", view.Data.Platform)
		}
	})

	t.Run("disconnect flips offline immediately", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/heartbeat", ts.token, &models.HeartbeatRequest{
			Platform:      "darwin",
			AppVersion:    "test",
			Disconnecting: true,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("disconnect status = %d", rec.Code)
		}

		rec = ts.do(t, http.MethodGet, "/api/v1/connections/dj-1", ts.token, nil)
		var view struct {
			Data struct {
				models.ConnectionStatus
				Live bool `json:"live"`
			} `json:"data"`
		}
		decodeBody(t, rec, &view)
		if view.Data.Live || view.Data.IsConnected {
			t.Errorf("view = %+v, want offline", view.Data)
		}
	})

	t.Run("unknown dj", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/connections/nobody", ts.token, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestDisconnectBeforeAnyContact(t *testing.T) {
	ts := setupServer(t, 0)

	// A companion that shuts down before ever reporting still gets a
	// clean acknowledgment.
	rec := ts.do(t, http.MethodPost, "/api/v1/heartbeat", ts.token, &models.HeartbeatRequest{
		Platform:      "linux",
		AppVersion:    "test",
		Disconnecting: true,
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
