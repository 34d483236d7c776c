// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/models"
)

// ErrInvalidCredentials is returned for any username/password mismatch.
// The same error covers unknown users so responses never leak whether a
// username exists.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AccountStore looks up DJ accounts for credential verification.
type AccountStore interface {
	GetAccountByUsername(ctx context.Context, username string) (*models.DJAccount, error)
}

// Authenticator verifies credentials and issues session tokens. DJ
// accounts come from the account store; an optional admin account from
// configuration is checked first.
type Authenticator struct {
	store         AccountStore
	jwtManager    *JWTManager
	adminUsername string
	adminHash     []byte
}

// NewAuthenticator builds an Authenticator. When cfg.AdminUsername is
// set, cfg.AdminPassword is bcrypt-hashed once at startup so login
// requests never hash a plaintext config value per call.
func NewAuthenticator(store AccountStore, jwtManager *JWTManager, cfg *config.SecurityConfig) (*Authenticator, error) {
	a := &Authenticator{
		store:      store,
		jwtManager: jwtManager,
	}

	if cfg.AdminUsername != "" {
		if cfg.AdminPassword == "" {
			return nil, fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_USERNAME is set")
		}
		hash := []byte(cfg.AdminPassword)
		if !strings.HasPrefix(cfg.AdminPassword, "$2a$") && !strings.HasPrefix(cfg.AdminPassword, "$2b$") {
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), 12)
			if err != nil {
				return nil, fmt.Errorf("failed to hash admin password: %w", err)
			}
		}
		a.adminUsername = cfg.AdminUsername
		a.adminHash = hash
	}

	return a, nil
}

// Login verifies a username/password pair and returns a signed session
// token with its expiry.
func (a *Authenticator) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if a.adminUsername != "" && a.matchesAdmin(req.Username, req.Password) {
		token, expiresAt, err := a.jwtManager.GenerateToken(req.Username, "admin", "", "admin")
		if err != nil {
			return nil, err
		}
		return &models.LoginResponse{Token: token, ExpiresAt: expiresAt, DJID: "admin"}, nil
	}

	account, err := a.store.GetAccountByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := a.jwtManager.GenerateToken(account.Username, account.DJID, account.OrganizationID, account.Role)
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{Token: token, ExpiresAt: expiresAt, DJID: account.DJID}, nil
}

func (a *Authenticator) matchesAdmin(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(a.adminUsername)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(a.adminHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}

// HashPassword bcrypt-hashes a plaintext password for account creation.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ExtractBearerToken pulls the token out of an Authorization header.
func ExtractBearerToken(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", fmt.Errorf("empty bearer token")
	}
	return token, nil
}
