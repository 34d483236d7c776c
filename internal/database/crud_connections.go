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

	"github.com/spinwire/spinwire/internal/metrics"
	"github.com/spinwire/spinwire/internal/models"
)

// UpsertConnectionStatus writes a DJ's liveness row, last-write-wins.
// Only one companion process should ever report for a given DJ, so no
// finer conflict resolution is needed.
func (db *DB) UpsertConnectionStatus(ctx context.Context, status *models.ConnectionStatus) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if status.LastHeartbeat.IsZero() {
		status.LastHeartbeat = time.Now().UTC()
	}
	status.UpdatedAt = time.Now().UTC()

	query := `INSERT INTO connection_status (
		dj_id, organization_id, is_connected, last_heartbeat,
		platform, app_version, detection_method, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (dj_id) DO UPDATE SET
		organization_id = excluded.organization_id,
		is_connected = excluded.is_connected,
		last_heartbeat = excluded.last_heartbeat,
		platform = excluded.platform,
		app_version = excluded.app_version,
		detection_method = excluded.detection_method,
		updated_at = excluded.updated_at`

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		status.DJID, nullString(status.OrganizationID), status.IsConnected, status.LastHeartbeat.UTC(),
		nullString(status.Platform), nullString(status.AppVersion), nullString(status.DetectionMethod), status.UpdatedAt,
	)
	metrics.RecordDBQuery("upsert", "connection_status", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert connection status: %w", err)
	}
	return nil
}

// SetDisconnected flips a DJ's connection flag off without touching the
// heartbeat timestamp. Used for the graceful disconnect notice.
func (db *DB) SetDisconnected(ctx context.Context, djID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE connection_status SET is_connected = false, updated_at = ? WHERE dj_id = ?`,
		time.Now().UTC(), djID)
	metrics.RecordDBQuery("update", "connection_status", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to set disconnected: %w", err)
	}
	return nil
}

// GetConnectionStatus retrieves a DJ's liveness row.
func (db *DB) GetConnectionStatus(ctx context.Context, djID string) (*models.ConnectionStatus, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT
		dj_id, organization_id, is_connected, last_heartbeat,
		platform, app_version, detection_method, updated_at
	FROM connection_status WHERE dj_id = ?`, djID)

	status := &models.ConnectionStatus{}
	var orgID, platform, appVersion, detectionMethod sql.NullString
	err := row.Scan(
		&status.DJID, &orgID, &status.IsConnected, &status.LastHeartbeat,
		&platform, &appVersion, &detectionMethod, &status.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection status: %w", err)
	}

	status.OrganizationID = orgID.String
	status.Platform = platform.String
	status.AppVersion = appVersion.String
	status.DetectionMethod = detectionMethod.String
	return status, nil
}
