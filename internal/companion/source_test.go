// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package companion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/models"
)

func discardEmit(models.TrackEvent) {}

// sourceConfig returns a companion config with fast wait settings and
// an explicit (possibly missing) track file path.
func sourceConfig(trackFile string) *config.CompanionConfig {
	return &config.CompanionConfig{
		Source:             config.SourceAuto,
		TextFilePath:       trackFile,
		FilePollInterval:   10 * time.Millisecond,
		SourceWaitAttempts: 2,
		SourceWaitDelay:    time.Millisecond,
	}
}

// stubPlaylist serves a live playlist page, reachable or not.
func stubPlaylist(t *testing.T, status int) {
	t.Helper()
	page := &playlistPage{status: status}
	srv := httptest.NewServer(page)
	t.Cleanup(srv.Close)
	overridePlaylistURL(t, srv.URL)
}

func activeTrackFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "now_playing.txt")
	writeTrackFile(t, path, "Bicep - Glue")
	return path
}

func TestSelectSourceAutoPrefersLivePlaylist(t *testing.T) {
	stubPlaylist(t, http.StatusOK)

	cfg := sourceConfig(activeTrackFile(t))
	cfg.LivePlaylistUsername = "testdj"

	source, err := SelectSource(context.Background(), cfg, discardEmit)
	if err != nil {
		t.Fatalf("SelectSource: %v", err)
	}
	if source.Method() != models.MethodLivePlaylists {
		t.Errorf("method = %q, want live playlists preferred", source.Method())
	}
}

func TestSelectSourceAutoFallsBackWhenPlaylistUnreachable(t *testing.T) {
	stubPlaylist(t, http.StatusNotFound)

	path := activeTrackFile(t)
	cfg := sourceConfig(path)
	cfg.LivePlaylistUsername = "testdj"

	source, err := SelectSource(context.Background(), cfg, discardEmit)
	if err != nil {
		t.Fatalf("SelectSource: %v", err)
	}
	if source.Method() != models.MethodTextFile {
		t.Errorf("method = %q, want text file fallback", source.Method())
	}
	if source.SourceFile() != path {
		t.Errorf("source file = %q, want %q", source.SourceFile(), path)
	}
}

func TestSelectSourceForcedTextFileIgnoresPlaylist(t *testing.T) {
	// A reachable playlist must not override an explicit mode choice.
	stubPlaylist(t, http.StatusOK)

	path := activeTrackFile(t)
	cfg := sourceConfig(path)
	cfg.Source = config.SourceTextFile
	cfg.LivePlaylistUsername = "testdj"

	source, err := SelectSource(context.Background(), cfg, discardEmit)
	if err != nil {
		t.Fatalf("SelectSource: %v", err)
	}
	if source.Method() != models.MethodTextFile {
		t.Errorf("method = %q, want forced text file mode", source.Method())
	}
}

func TestSelectSourceForcedLivePlaylistNoFallback(t *testing.T) {
	stubPlaylist(t, http.StatusNotFound)

	// An active track file exists, but the forced mode must not use it.
	cfg := sourceConfig(activeTrackFile(t))
	cfg.Source = config.SourceLivePlaylists
	cfg.LivePlaylistUsername = "testdj"

	source, err := SelectSource(context.Background(), cfg, discardEmit)
	if err == nil {
		t.Fatalf("SelectSource = %q source, want error", source.Method())
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("err = %v", err)
	}
}

func TestSelectSourceBoundedWaitExhaustion(t *testing.T) {
	cfg := sourceConfig(filepath.Join(t.TempDir(), "missing.txt"))

	start := time.Now()
	_, err := SelectSource(context.Background(), cfg, discardEmit)
	if err == nil {
		t.Fatal("SelectSource succeeded with no source available")
	}
	if !strings.Contains(err.Error(), "COMPANION_LIVE_PLAYLIST_USERNAME") {
		t.Errorf("err = %v, want guidance naming the live playlist setting", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("wait took %v, want bounded by attempts * delay", elapsed)
	}
}

func TestSelectSourceWaitsForFileToAppear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "now_playing.txt")
	cfg := sourceConfig(path)
	cfg.SourceWaitAttempts = 50
	cfg.SourceWaitDelay = 10 * time.Millisecond

	go func() {
		time.Sleep(50 * time.Millisecond)
		if err := os.WriteFile(path, []byte("Overmono - So U Kno"), 0o644); err != nil {
			t.Errorf("failed to write track file: %v", err)
		}
	}()

	source, err := SelectSource(context.Background(), cfg, discardEmit)
	if err != nil {
		t.Fatalf("SelectSource: %v", err)
	}
	if source.SourceFile() != path {
		t.Errorf("source file = %q", source.SourceFile())
	}
}

func TestSelectSourceCancellation(t *testing.T) {
	cfg := sourceConfig(filepath.Join(t.TempDir(), "missing.txt"))
	cfg.SourceWaitAttempts = 1000
	cfg.SourceWaitDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := SelectSource(ctx, cfg, discardEmit)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
