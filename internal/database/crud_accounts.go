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

	"github.com/spinwire/spinwire/internal/models"
)

// CreateAccount persists a new DJ account. The caller is responsible
// for hashing the password first.
func (db *DB) CreateAccount(ctx context.Context, account *models.DJAccount) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.Role == "" {
		account.Role = "dj"
	}

	query := `INSERT INTO dj_accounts (
		id, username, password_hash, dj_id, organization_id, role, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		account.ID, account.Username, account.PasswordHash,
		account.DJID, nullString(account.OrganizationID), account.Role, account.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("username %q already exists", account.Username)
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetAccountByUsername retrieves a DJ account for credential checks.
func (db *DB) GetAccountByUsername(ctx context.Context, username string) (*models.DJAccount, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT
		id, username, password_hash, dj_id, organization_id, role, created_at
	FROM dj_accounts WHERE username = ?`, username)

	account := &models.DJAccount{}
	var orgID sql.NullString
	err := row.Scan(
		&account.ID, &account.Username, &account.PasswordHash,
		&account.DJID, &orgID, &account.Role, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.OrganizationID = orgID.String
	return account, nil
}
