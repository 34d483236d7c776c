// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spinwire/spinwire/internal/metrics"
	"github.com/spinwire/spinwire/internal/models"
)

// ErrAlreadyMatched is returned when a request has left the pending
// state before the caller's transition could apply.
var ErrAlreadyMatched = errors.New("request is no longer pending")

// CreateRequest persists a new song request in the pending state.
func (db *DB) CreateRequest(ctx context.Context, req *models.SongRequest) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}

	query := `INSERT INTO song_requests (
		id, organization_id, artist, title,
		normalized_artist, normalized_title, requester_name,
		status, boost_amount, created_at, expires_at, matched_at, matched_play_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		req.ID, req.OrganizationID, req.Artist, req.Title,
		req.NormalizedArtist, req.NormalizedTitle, nullString(req.RequesterName),
		req.Status, req.BoostAmount, req.CreatedAt, req.ExpiresAt, req.MatchedAt, req.MatchedPlayID,
	)
	metrics.RecordDBQuery("insert", "song_requests", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// GetRequest retrieves a single request by id.
func (db *DB) GetRequest(ctx context.Context, id uuid.UUID) (*models.SongRequest, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, selectRequestColumns+` WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ListRequests returns an organization's requests, optionally filtered
// by status, newest first.
func (db *DB) ListRequests(ctx context.Context, orgID, status string, limit int) ([]*models.SongRequest, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := selectRequestColumns + ` WHERE organization_id = ?`
	args := []interface{}{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "song_requests", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer closeQuietly(rows)

	return collectRequests(rows)
}

// ListPendingRequestsInWindow returns pending requests for an
// organization whose creation time brackets the play time under the
// match window: createdAt <= playedAt <= createdAt + window. Ordered
// oldest first so FIFO tie-breaking falls out of iteration order.
//
// The (organization_id, status, created_at) index keeps this bounded;
// the query runs synchronously inside the ingestion request path.
func (db *DB) ListPendingRequestsInWindow(ctx context.Context, orgID string, playedAt time.Time, window time.Duration) ([]*models.SongRequest, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	playedAt = playedAt.UTC()
	earliest := playedAt.Add(-window)

	query := selectRequestColumns + `
	WHERE organization_id = ?
	  AND status = ?
	  AND created_at <= ?
	  AND created_at >= ?
	ORDER BY created_at ASC`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, orgID, models.RequestStatusPending, playedAt, earliest)
	metrics.RecordDBQuery("select", "song_requests", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer closeQuietly(rows)

	return collectRequests(rows)
}

// MarkRequestMatched transitions a request from pending to matched,
// guarded so the transition happens at most once. A request that has
// already left the pending state returns ErrAlreadyMatched.
func (db *DB) MarkRequestMatched(ctx context.Context, requestID, playID uuid.UUID, matchedAt time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE song_requests
		SET status = ?, matched_at = ?, matched_play_id = ?
		WHERE id = ? AND status = ?`

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, query,
		models.RequestStatusMatched, matchedAt.UTC(), playID,
		requestID, models.RequestStatusPending,
	)
	metrics.RecordDBQuery("update", "song_requests", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to mark request matched: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyMatched
	}
	return nil
}

// UpdateRequestStatus applies an external lifecycle transition
// (expired, cancelled) to a pending request.
func (db *DB) UpdateRequestStatus(ctx context.Context, requestID uuid.UUID, status string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if status != models.RequestStatusExpired && status != models.RequestStatusCancelled {
		return fmt.Errorf("invalid lifecycle status %q", status)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE song_requests SET status = ? WHERE id = ? AND status = ?`,
		status, requestID, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyMatched
	}
	return nil
}

const selectRequestColumns = `SELECT
	id, organization_id, artist, title,
	normalized_artist, normalized_title, requester_name,
	status, boost_amount, created_at, expires_at, matched_at, matched_play_id
FROM song_requests`

func scanRequest(s scanner) (*models.SongRequest, error) {
	req := &models.SongRequest{}
	var requesterName sql.NullString

	err := s.Scan(
		&req.ID, &req.OrganizationID, &req.Artist, &req.Title,
		&req.NormalizedArtist, &req.NormalizedTitle, &requesterName,
		&req.Status, &req.BoostAmount, &req.CreatedAt, &req.ExpiresAt, &req.MatchedAt, &req.MatchedPlayID,
	)
	if err != nil {
		return nil, err
	}

	req.RequesterName = requesterName.String
	return req, nil
}

func collectRequests(rows *sql.Rows) ([]*models.SongRequest, error) {
	var requests []*models.SongRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
