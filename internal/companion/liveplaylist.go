// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package companion

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
)

const defaultPlaylistPollInterval = 20 * time.Second

// livePlaylistURL is the public live playlist page for a username.
// Overridable in tests.
var livePlaylistURL = "https://serato.com/playlists/%s/live"

// trackLinePattern extracts track names from the playlist page. The
// page schema is untrusted and changes without notice; extraction is
// best effort and a miss is a normal non-event.
var trackLinePattern = regexp.MustCompile(`(?s)playlist-trackname[^>]*>\s*(.*?)\s*<`)

// LivePlaylistWatcher scrapes a public live playlist page and emits an
// event when the most recent track changes.
type LivePlaylistWatcher struct {
	username string
	interval time.Duration
	emit     EmitFunc
	client   *http.Client

	lastTrack string
}

// NewLivePlaylistWatcher creates a watcher for the given username.
func NewLivePlaylistWatcher(username string, interval time.Duration, emit EmitFunc) *LivePlaylistWatcher {
	if interval <= 0 {
		interval = defaultPlaylistPollInterval
	}
	return &LivePlaylistWatcher{
		username: username,
		interval: interval,
		emit:     emit,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Method implements TrackSource.
func (w *LivePlaylistWatcher) Method() string {
	return models.MethodLivePlaylists
}

// SourceFile implements TrackSource.
func (w *LivePlaylistWatcher) SourceFile() string {
	return ""
}

// String implements fmt.Stringer for supervisor logging.
func (w *LivePlaylistWatcher) String() string {
	return "liveplaylist-watcher"
}

// Run polls the playlist page until the context is canceled.
func (w *LivePlaylistWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll fetches the page once. Fetch and parse failures yield no event
// and are retried next cycle.
func (w *LivePlaylistWatcher) poll(ctx context.Context) {
	track, err := w.fetchLatestTrack(ctx)
	if err != nil {
		logging.Debug().Err(err).Str("username", w.username).Msg("Live playlist fetch failed, will retry")
		return
	}
	if track == "" || track == w.lastTrack {
		return
	}
	w.lastTrack = track

	artist, title, ok := parseTrackLine(track)
	if !ok {
		logging.Debug().Str("track", track).Msg("Unparseable playlist entry, skipping")
		return
	}

	w.emit(models.TrackEvent{
		Artist:   artist,
		Title:    title,
		PlayedAt: time.Now().UTC(),
	})
}

// fetchLatestTrack returns the most recent track line on the page, or
// empty when none parses.
func (w *LivePlaylistWatcher) fetchLatestTrack(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(livePlaylistURL, w.username), nil)
	if err != nil {
		return "", err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("playlist page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	matches := trackLinePattern.FindAllStringSubmatch(string(body), -1)
	if len(matches) == 0 {
		return "", nil
	}

	// Playlist pages list tracks oldest first; the last entry is the
	// one currently playing.
	latest := strings.TrimSpace(html.UnescapeString(matches[len(matches)-1][1]))
	return latest, nil
}

// ProbeLivePlaylist checks that a username's live playlist page is
// reachable and public.
func ProbeLivePlaylist(ctx context.Context, username string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(livePlaylistURL, username), nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("playlist page for %q returned status %d", username, resp.StatusCode)
	}
	return nil
}
