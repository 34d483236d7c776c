// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package companion

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
)

// activeFileMaxAge is how recently a track file must have been modified
// to count as active during source selection. DJ software rewrites the
// file on every deck load, so a day-old file means nothing is playing.
const activeFileMaxAge = 24 * time.Hour

const defaultFilePollInterval = 2 * time.Second

// TextFileWatcher polls a now-playing text file and emits an event each
// time its content changes to a new non-empty parseable track.
type TextFileWatcher struct {
	path     string
	interval time.Duration
	emit     EmitFunc

	lastContent string
}

// NewTextFileWatcher creates a watcher for the given file path.
func NewTextFileWatcher(path string, interval time.Duration, emit EmitFunc) *TextFileWatcher {
	if interval <= 0 {
		interval = defaultFilePollInterval
	}
	return &TextFileWatcher{
		path:     path,
		interval: interval,
		emit:     emit,
	}
}

// Method implements TrackSource.
func (w *TextFileWatcher) Method() string {
	return models.MethodTextFile
}

// SourceFile implements TrackSource.
func (w *TextFileWatcher) SourceFile() string {
	return w.path
}

// String implements fmt.Stringer for supervisor logging.
func (w *TextFileWatcher) String() string {
	return "textfile-watcher"
}

// Run polls the file until the context is canceled. The current content
// at startup is swallowed as already-seen so reconnecting mid-set does
// not re-report the track the server already knows about.
func (w *TextFileWatcher) Run(ctx context.Context) error {
	if content, err := os.ReadFile(w.path); err == nil {
		w.lastContent = strings.TrimSpace(string(content))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll reads the file once and emits when the content changed to a new
// parseable track. Read errors are normal between deck loads; the file
// can vanish and reappear.
func (w *TextFileWatcher) poll() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return
	}

	content := strings.TrimSpace(string(raw))
	if content == "" || content == w.lastContent {
		return
	}
	w.lastContent = content

	artist, title, ok := parseTrackLine(content)
	if !ok {
		logging.Debug().Str("line", content).Msg("Unparseable track line, skipping")
		return
	}

	w.emit(models.TrackEvent{
		Artist:     artist,
		Title:      title,
		PlayedAt:   time.Now().UTC(),
		SourceFile: w.path,
	})
}

// parseTrackLine splits a "Artist - Title" line. Lines without the
// separator or with an empty side yield no event this cycle.
func parseTrackLine(line string) (artist, title string, ok bool) {
	parts := strings.SplitN(line, " - ", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	artist = strings.TrimSpace(parts[0])
	title = strings.TrimSpace(parts[1])
	if artist == "" || title == "" {
		return "", "", false
	}
	return artist, title, true
}

// isActiveTrackFile reports whether the file has non-empty content and
// was modified within the recency threshold.
func isActiveTrackFile(path string, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if now.Sub(info.ModTime()) > activeFileMaxAge {
		return false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(content)) != ""
}
