// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package matcher resolves newly persisted plays against pending song
// requests. Exact normalized equality outranks fuzzy similarity; among
// equally ranked candidates the earliest-created request wins, so
// requesters who have waited longest are served first.
package matcher

import (
	"context"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/google/uuid"

	"github.com/spinwire/spinwire/internal/logging"
	spinmetrics "github.com/spinwire/spinwire/internal/metrics"
	"github.com/spinwire/spinwire/internal/models"
)

// Store is the persistence surface the matcher needs.
type Store interface {
	ListPendingRequestsInWindow(ctx context.Context, orgID string, playedAt time.Time, window time.Duration) ([]*models.SongRequest, error)
	MarkRequestMatched(ctx context.Context, requestID, playID uuid.UUID, matchedAt time.Time) error
	SetPlayMatchedRequest(ctx context.Context, playID, requestID uuid.UUID) error
}

// Notifier receives fire-and-forget match notifications. Failures are
// the notifier's own problem; they never affect the match outcome.
type Notifier interface {
	NotifyMatch(play *models.PlayHistoryRecord, request *models.SongRequest)
}

// Matcher finds the best pending request for a play.
type Matcher struct {
	store     Store
	notifier  Notifier
	window    time.Duration
	threshold float64
	jw        *metrics.JaroWinkler
}

// New creates a Matcher. notifier may be nil.
func New(store Store, notifier Notifier, window time.Duration, threshold float64) *Matcher {
	return &Matcher{
		store:     store,
		notifier:  notifier,
		window:    window,
		threshold: threshold,
		jw:        metrics.NewJaroWinkler(),
	}
}

// Match searches the play's organization for a pending request the play
// satisfies and applies the pending-to-matched transition. The play must
// already be persisted. A play without an organization never matches.
//
// Candidates are scoped to (organization, pending, match window) by the
// store query; this runs synchronously inside the ingestion path, so the
// query must stay indexed and bounded.
func (m *Matcher) Match(ctx context.Context, play *models.PlayHistoryRecord) (*models.MatchResult, error) {
	start := time.Now()
	result, err := m.match(ctx, play)
	switch {
	case err != nil:
		spinmetrics.RecordMatchAttempt("error", time.Since(start))
	case !result.Matched:
		spinmetrics.RecordMatchAttempt("none", time.Since(start))
	case result.Exact:
		spinmetrics.RecordMatchAttempt("exact", time.Since(start))
	default:
		spinmetrics.RecordMatchAttempt("fuzzy", time.Since(start))
	}
	return result, err
}

func (m *Matcher) match(ctx context.Context, play *models.PlayHistoryRecord) (*models.MatchResult, error) {
	noMatch := &models.MatchResult{Matched: false}

	if play.OrganizationID == "" {
		return noMatch, nil
	}

	candidates, err := m.store.ListPendingRequestsInWindow(ctx, play.OrganizationID, play.PlayedAt, m.window)
	if err != nil {
		return noMatch, err
	}
	if len(candidates) == 0 {
		return noMatch, nil
	}

	// Candidates arrive oldest first, so the first acceptable candidate
	// in each tier is the FIFO winner.
	exact, fuzzy := m.rank(play, candidates)

	for _, c := range append(exact, fuzzy...) {
		if err := m.claim(ctx, play, c.request); err != nil {
			// Lost the race for this request; try the next candidate.
			logging.Debug().
				Str("request_id", c.request.ID.String()).
				Err(err).
				Msg("Request claimed by another play, trying next candidate")
			continue
		}

		if m.notifier != nil {
			m.notifier.NotifyMatch(play, c.request)
		}

		requestID := c.request.ID
		return &models.MatchResult{
			Matched:          true,
			MatchedRequestID: &requestID,
			Exact:            c.exact,
			Score:            c.score,
		}, nil
	}

	return noMatch, nil
}

type candidate struct {
	request *models.SongRequest
	exact   bool
	score   float64
}

// rank splits candidates into exact and fuzzy tiers, both preserving
// the oldest-first input order. Fuzzy candidates below the similarity
// threshold are dropped.
func (m *Matcher) rank(play *models.PlayHistoryRecord, requests []*models.SongRequest) (exact, fuzzy []candidate) {
	playKey := play.NormalizedArtist + " " + play.NormalizedTitle

	for _, req := range requests {
		if req.NormalizedArtist == play.NormalizedArtist && req.NormalizedTitle == play.NormalizedTitle {
			exact = append(exact, candidate{request: req, exact: true, score: 1.0})
			continue
		}

		reqKey := req.NormalizedArtist + " " + req.NormalizedTitle
		score := strutil.Similarity(playKey, reqKey, m.jw)
		if score >= m.threshold {
			fuzzy = append(fuzzy, candidate{request: req, score: score})
		}
	}
	return exact, fuzzy
}

// claim applies the guarded pending-to-matched transition and links the
// play to the request. The request transition is the commit point; the
// play-side link is best effort since the request already records the
// winning play id.
func (m *Matcher) claim(ctx context.Context, play *models.PlayHistoryRecord, req *models.SongRequest) error {
	matchedAt := time.Now().UTC()
	if err := m.store.MarkRequestMatched(ctx, req.ID, play.ID, matchedAt); err != nil {
		return err
	}

	req.Status = models.RequestStatusMatched
	req.MatchedAt = &matchedAt
	playID := play.ID
	req.MatchedPlayID = &playID

	if err := m.store.SetPlayMatchedRequest(ctx, play.ID, req.ID); err != nil {
		logging.Warn().
			Str("play_id", play.ID.String()).
			Str("request_id", req.ID.String()).
			Err(err).
			Msg("Failed to link play to matched request")
	} else {
		requestID := req.ID
		play.MatchedRequestID = &requestID
	}

	return nil
}
