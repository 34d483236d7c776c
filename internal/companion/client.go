// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package companion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/term"

	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
)

// Client errors surfaced to the runtime.
var (
	ErrRateLimited  = errors.New("rate limited by server")
	ErrUnauthorized = errors.New("authentication rejected")
)

// Client is the serialized HTTP sender for all companion-to-server
// calls. A mutex keeps at most one request in flight so plays arrive in
// detection order; a circuit breaker stops hammering a server that is
// down, since delivery is at-most-once and dropped events are not
// queued.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	cache      *TokenCache
	breaker    *gobreaker.CircuitBreaker[[]byte]

	sendMu sync.Mutex

	tokenMu sync.RWMutex
	token   string
}

// NewClient creates a client for the given server. cache may be nil to
// disable token persistence.
func NewClient(serverURL, username, password string, cache *TokenCache) *Client {
	settings := gobreaker.Settings{
		Name:     "spinwire-server",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 401 and 429 mean the server is up and answering; only
		// availability failures should trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &Client{
		baseURL:    serverURL,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// setToken swaps the outbound bearer token. Detection and heartbeat
// loops keep running; only the header changes.
func (c *Client) setToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

// Authenticate establishes a session, preferring a cached token. A
// stale cached token is corrected transparently by the 401 re-login
// path on first use.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.cache != nil {
		if token, err := c.cache.Get(c.username); err == nil {
			c.setToken(token)
			logging.Debug().Str("username", c.username).Msg("Using cached session token")
			return nil
		}
	}
	return c.login(ctx)
}

// login exchanges credentials for a fresh token.
func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(&models.LoginRequest{
		Username: c.username,
		Password: c.password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool                 `json:"success"`
		Data    models.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.setToken(envelope.Data.Token)
	if c.cache != nil {
		if err := c.cache.Put(c.username, envelope.Data.Token, envelope.Data.ExpiresAt); err != nil {
			logging.Warn().Err(err).Msg("Failed to cache session token")
		}
	}

	logging.Info().Str("dj_id", envelope.Data.DJID).Msg("Authenticated with server")
	return nil
}

// SendTrackEvent reports one detected play.
func (c *Client) SendTrackEvent(ctx context.Context, event *models.TrackEventRequest) (*models.TrackEventResponse, error) {
	body, err := c.send(ctx, "/api/v1/track-events", event)
	if err != nil {
		return nil, err
	}

	var resp models.TrackEventResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode track event response: %w", err)
	}
	return &resp, nil
}

// SendHeartbeat reports companion liveness.
func (c *Client) SendHeartbeat(ctx context.Context, hb *models.HeartbeatRequest) error {
	_, err := c.send(ctx, "/api/v1/heartbeat", hb)
	return err
}

// Disconnect sends the graceful shutdown notice. Best effort: the
// caller bounds it with a short timeout and swallows the error.
func (c *Client) Disconnect(ctx context.Context, platform, appVersion string) error {
	return c.SendHeartbeat(ctx, &models.HeartbeatRequest{
		Platform:      platform,
		AppVersion:    appVersion,
		Disconnecting: true,
	})
}

// send posts one payload through the serialized sender. A 401 triggers
// exactly one re-login and retry; a second 401 is surfaced.
func (c *Client) send(ctx context.Context, path string, payload any) ([]byte, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	return c.breaker.Execute(func() ([]byte, error) {
		respBody, err := c.post(ctx, path, body)
		if !errors.Is(err, ErrUnauthorized) {
			return respBody, err
		}

		logging.Info().Msg("Session token rejected, re-authenticating")
		if c.cache != nil {
			if err := c.cache.Delete(c.username); err != nil {
				logging.Warn().Err(err).Msg("Failed to drop cached token")
			}
		}
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		return c.post(ctx, path, body)
	})
}

// post performs a single authenticated request.
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, respBody)
	}

	return respBody, nil
}

// PromptPassword reads a masked password from the terminal when none
// was provided via configuration.
func PromptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
