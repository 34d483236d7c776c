// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package database

import (
	"context"
	"fmt"
)

// createTables creates the schema. All statements are idempotent so
// startup after an upgrade or crash is safe.
//
// The play_history unique constraint on (dj_id, normalized_artist,
// normalized_title, time_bucket) is the dedup mechanism: a re-detected
// track inside the same bucket fails the insert and is reported as a
// duplicate, never as a second play.
func (db *DB) createTables() error {
	ctx, cancel := db.ensureContext(context.Background())
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS play_history (
			id UUID PRIMARY KEY,
			dj_id VARCHAR NOT NULL,
			organization_id VARCHAR,
			artist VARCHAR NOT NULL,
			title VARCHAR NOT NULL,
			normalized_artist VARCHAR NOT NULL,
			normalized_title VARCHAR NOT NULL,
			played_at TIMESTAMP NOT NULL,
			time_bucket TIMESTAMP NOT NULL,
			detection_method VARCHAR NOT NULL,
			source_file VARCHAR,
			matched_request_id UUID,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (dj_id, normalized_artist, normalized_title, time_bucket)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_play_history_dj_played
			ON play_history (dj_id, played_at)`,

		`CREATE TABLE IF NOT EXISTS song_requests (
			id UUID PRIMARY KEY,
			organization_id VARCHAR NOT NULL,
			artist VARCHAR NOT NULL,
			title VARCHAR NOT NULL,
			normalized_artist VARCHAR NOT NULL,
			normalized_title VARCHAR NOT NULL,
			requester_name VARCHAR,
			status VARCHAR NOT NULL DEFAULT 'pending',
			boost_amount INTEGER,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP,
			matched_at TIMESTAMP,
			matched_play_id UUID
		)`,

		// The matcher's candidate query filters on exactly these columns.
		`CREATE INDEX IF NOT EXISTS idx_song_requests_org_status
			ON song_requests (organization_id, status, created_at)`,

		`CREATE TABLE IF NOT EXISTS connection_status (
			dj_id VARCHAR PRIMARY KEY,
			organization_id VARCHAR,
			is_connected BOOLEAN NOT NULL DEFAULT false,
			last_heartbeat TIMESTAMP NOT NULL,
			platform VARCHAR,
			app_version VARCHAR,
			detection_method VARCHAR,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS dj_accounts (
			id UUID PRIMARY KEY,
			username VARCHAR NOT NULL UNIQUE,
			password_hash VARCHAR NOT NULL,
			dj_id VARCHAR NOT NULL,
			organization_id VARCHAR,
			role VARCHAR NOT NULL DEFAULT 'dj',
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}
