// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package companion

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const tokenKeyPrefix = "token:"

// ErrTokenNotCached is returned when no token is stored for a username.
var ErrTokenNotCached = errors.New("no cached token")

// TokenCache persists session tokens across companion restarts so a DJ
// does not re-enter their password every time they start the process.
// Entries carry the token's TTL; badger expires them automatically.
type TokenCache struct {
	db *badger.DB
}

// OpenTokenCache opens (or creates) the cache at the given directory.
func OpenTokenCache(path string) (*TokenCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open token cache: %w", err)
	}
	return &TokenCache{db: db}, nil
}

// Close releases the underlying store.
func (c *TokenCache) Close() error {
	return c.db.Close()
}

// Get returns the cached token for a username.
func (c *TokenCache) Get(username string) (string, error) {
	var token string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKeyPrefix + username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTokenNotCached
		}
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		return item.Value(func(val []byte) error {
			token = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Put stores a token until expiresAt.
func (c *TokenCache) Put(username, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(tokenKeyPrefix+username), []byte(token)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Delete drops the cached token, used after a 401 invalidated it.
func (c *TokenCache) Delete(username string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(tokenKeyPrefix + username))
	})
}
