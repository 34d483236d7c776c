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

// ErrDuplicatePlay is returned when a play's (dj, artist, title, bucket)
// tuple already exists. Callers treat it as idempotent success, not as
// a failure.
var ErrDuplicatePlay = errors.New("duplicate play within dedup window")

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// InsertPlay persists a new play history record. The record's TimeBucket
// is derived here from PlayedAt. Returns ErrDuplicatePlay when the
// unique constraint rejects the row.
func (db *DB) InsertPlay(ctx context.Context, play *models.PlayHistoryRecord) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if play.ID == uuid.Nil {
		play.ID = uuid.New()
	}
	if play.CreatedAt.IsZero() {
		play.CreatedAt = time.Now().UTC()
	}
	play.TimeBucket = db.TimeBucket(play.PlayedAt)

	query := `INSERT INTO play_history (
		id, dj_id, organization_id, artist, title,
		normalized_artist, normalized_title, played_at, time_bucket,
		detection_method, source_file, matched_request_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		play.ID, play.DJID, nullString(play.OrganizationID), play.Artist, play.Title,
		play.NormalizedArtist, play.NormalizedTitle, play.PlayedAt.UTC(), play.TimeBucket,
		play.DetectionMethod, nullString(play.SourceFile), play.MatchedRequestID, play.CreatedAt,
	)
	metrics.RecordDBQuery("insert", "play_history", time.Since(start), err)

	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicatePlay
		}
		return fmt.Errorf("failed to insert play: %w", err)
	}
	return nil
}

// SetPlayMatchedRequest records which request a play satisfied. Only
// ever sets the reference once; a play that already carries one is left
// untouched.
func (db *DB) SetPlayMatchedRequest(ctx context.Context, playID, requestID uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE play_history SET matched_request_id = ?
		WHERE id = ? AND matched_request_id IS NULL`

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, query, requestID, playID)
	metrics.RecordDBQuery("update", "play_history", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to set matched request: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("play %s not found or already matched", playID)
	}
	return nil
}

// GetPlay retrieves a single play by id.
func (db *DB) GetPlay(ctx context.Context, id uuid.UUID) (*models.PlayHistoryRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT
		id, dj_id, organization_id, artist, title,
		normalized_artist, normalized_title, played_at, time_bucket,
		detection_method, source_file, matched_request_id, created_at
	FROM play_history WHERE id = ?`, id)

	play, err := scanPlay(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get play: %w", err)
	}
	return play, nil
}

// ListRecentPlays returns a DJ's most recent plays, newest first.
func (db *DB) ListRecentPlays(ctx context.Context, djID string, limit int) ([]*models.PlayHistoryRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 50
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT
		id, dj_id, organization_id, artist, title,
		normalized_artist, normalized_title, played_at, time_bucket,
		detection_method, source_file, matched_request_id, created_at
	FROM play_history WHERE dj_id = ?
	ORDER BY played_at DESC LIMIT ?`, djID, limit)
	metrics.RecordDBQuery("select", "play_history", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list plays: %w", err)
	}
	defer closeQuietly(rows)

	var plays []*models.PlayHistoryRecord
	for rows.Next() {
		play, err := scanPlay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		plays = append(plays, play)
	}
	return plays, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPlay(s scanner) (*models.PlayHistoryRecord, error) {
	play := &models.PlayHistoryRecord{}
	var orgID, sourceFile sql.NullString
	var matchedRequestID *uuid.UUID

	err := s.Scan(
		&play.ID, &play.DJID, &orgID, &play.Artist, &play.Title,
		&play.NormalizedArtist, &play.NormalizedTitle, &play.PlayedAt, &play.TimeBucket,
		&play.DetectionMethod, &sourceFile, &matchedRequestID, &play.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	play.OrganizationID = orgID.String
	play.SourceFile = sourceFile.String
	play.MatchedRequestID = matchedRequestID
	return play, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
