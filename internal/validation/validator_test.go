// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/spinwire/spinwire/internal/models"
)

func validTrackEventRequest() *models.TrackEventRequest {
	return &models.TrackEventRequest{
		Track: models.TrackEvent{
			Artist:   "Drake",
			Title:    "God's Plan",
			PlayedAt: time.Now(),
		},
		DetectionMethod: models.MethodTextFile,
		Platform:        "darwin",
		AppVersion:      "1.4.2",
	}
}

func TestValidateTrackEventRequest(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.TrackEventRequest)
		wantErr string
	}{
		{"valid", func(r *models.TrackEventRequest) {}, ""},
		{"missing artist", func(r *models.TrackEventRequest) { r.Track.Artist = "" }, "Artist is required"},
		{"missing title", func(r *models.TrackEventRequest) { r.Track.Title = "" }, "Title is required"},
		{"missing played_at", func(r *models.TrackEventRequest) { r.Track.PlayedAt = time.Time{} }, "PlayedAt is required"},
		{"bad detection method", func(r *models.TrackEventRequest) { r.DetectionMethod = "telepathy" }, "valid detection method"},
		{"missing detection method", func(r *models.TrackEventRequest) { r.DetectionMethod = "" }, "DetectionMethod is required"},
		{"missing platform", func(r *models.TrackEventRequest) { r.Platform = "" }, "Platform is required"},
		{"artist too long", func(r *models.TrackEventRequest) { r.Track.Artist = strings.Repeat("a", 600) }, "at most 512 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validTrackEventRequest()
			tt.mutate(req)
			err := ValidateStruct(req)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateStruct() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateStruct() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateStruct() error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateDetectionMethods(t *testing.T) {
	for method := range models.ValidDetectionMethods {
		req := validTrackEventRequest()
		req.DetectionMethod = method
		if err := ValidateStruct(req); err != nil {
			t.Errorf("ValidateStruct() rejected valid method %q: %v", method, err)
		}
	}
}

func TestValidateHeartbeat(t *testing.T) {
	hb := &models.HeartbeatRequest{Platform: "linux", AppVersion: "1.4.2"}
	if err := ValidateStruct(hb); err != nil {
		t.Errorf("ValidateStruct() unexpected error: %v", err)
	}

	hb = &models.HeartbeatRequest{Platform: "linux", AppVersion: "1.4.2", DetectionMethod: "bogus"}
	if err := ValidateStruct(hb); err == nil {
		t.Error("ValidateStruct() accepted invalid detection method on heartbeat")
	}

	hb = &models.HeartbeatRequest{}
	err := ValidateStruct(hb)
	if err == nil {
		t.Fatal("ValidateStruct() accepted empty heartbeat")
	}
	if apiErr := err.ToAPIError(); apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("ToAPIError() code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
}
