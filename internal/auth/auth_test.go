// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/models"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret:      "test-secret-with-at-least-32-characters",
		SessionTimeout: time.Hour,
	}
}

type fakeAccountStore struct {
	accounts map[string]*models.DJAccount
}

func (s *fakeAccountStore) GetAccountByUsername(_ context.Context, username string) (*models.DJAccount, error) {
	if account, ok := s.accounts[username]; ok {
		return account, nil
	}
	return nil, errors.New("account not found")
}

func newTestStore(t *testing.T) *fakeAccountStore {
	t.Helper()
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	return &fakeAccountStore{accounts: map[string]*models.DJAccount{
		"djshadow": {
			Username:       "djshadow",
			PasswordHash:   hash,
			DJID:           "dj-123",
			OrganizationID: "org-9",
			Role:           "dj",
		},
	}}
}

func TestJWTManagerRoundTrip(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager() error: %v", err)
	}

	token, expiresAt, err := m.GenerateToken("djshadow", "dj-123", "org-9", "dj")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 59*time.Minute {
		t.Errorf("expiry %s not within session timeout", expiresAt)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if claims.DJID != "dj-123" || claims.OrganizationID != "org-9" || claims.Username != "djshadow" {
		t.Errorf("claims = %+v, want dj-123/org-9/djshadow", claims)
	}
}

func TestJWTManagerRejectsTampered(t *testing.T) {
	m, _ := NewJWTManager(testSecurityConfig())
	token, _, _ := m.GenerateToken("djshadow", "dj-123", "org-9", "dj")

	if _, err := m.ValidateToken(token + "x"); err == nil {
		t.Error("ValidateToken() accepted tampered token")
	}
	if _, err := m.ValidateToken("not-a-token"); err == nil {
		t.Error("ValidateToken() accepted garbage")
	}

	other, _ := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "a-completely-different-32-char-secret!!",
		SessionTimeout: time.Hour,
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted token signed with another secret")
	}
}

func TestJWTManagerRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Error("NewJWTManager() accepted empty secret")
	}
}

func TestAuthenticatorLogin(t *testing.T) {
	m, _ := NewJWTManager(testSecurityConfig())
	a, err := NewAuthenticator(newTestStore(t), m, testSecurityConfig())
	if err != nil {
		t.Fatalf("NewAuthenticator() error: %v", err)
	}

	resp, err := a.Login(context.Background(), &models.LoginRequest{Username: "djshadow", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	claims, err := m.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if claims.DJID != "dj-123" {
		t.Errorf("token DJID = %q, want dj-123", claims.DJID)
	}

	if _, err := a.Login(context.Background(), &models.LoginRequest{Username: "djshadow", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := a.Login(context.Background(), &models.LoginRequest{Username: "nobody", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with unknown user = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticatorAdminLogin(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.AdminUsername = "admin"
	cfg.AdminPassword = "hunter2hunter2"

	m, _ := NewJWTManager(cfg)
	a, err := NewAuthenticator(newTestStore(t), m, cfg)
	if err != nil {
		t.Fatalf("NewAuthenticator() error: %v", err)
	}

	resp, err := a.Login(context.Background(), &models.LoginRequest{Username: "admin", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Login() as admin error: %v", err)
	}
	claims, _ := m.ValidateToken(resp.Token)
	if claims.Role != "admin" {
		t.Errorf("admin role = %q, want admin", claims.Role)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc123", "abc123", false},
		{"Bearer ", "", true},
		{"Basic abc123", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ExtractBearerToken(tt.header)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExtractBearerToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
