// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

// Package liveness derives whether a DJ's companion connection counts
// as live. The stored is_connected flag alone is never trusted: a
// companion that crashed without a disconnect notice leaves the flag
// stuck on true, so liveness additionally requires a fresh heartbeat.
package liveness

import (
	"time"

	"github.com/spinwire/spinwire/internal/models"
)

// DefaultStalenessThreshold is how old a heartbeat may be before the
// connection is reported as disconnected regardless of its flag.
const DefaultStalenessThreshold = 2 * time.Minute

// Tracker answers observer-facing liveness questions.
type Tracker struct {
	staleness time.Duration
}

// New creates a Tracker. A non-positive threshold falls back to the
// default.
func New(staleness time.Duration) *Tracker {
	if staleness <= 0 {
		staleness = DefaultStalenessThreshold
	}
	return &Tracker{staleness: staleness}
}

// IsLive reports whether a connection should be displayed as live at
// the given instant. Both conditions must hold: the flag is set and the
// last heartbeat is within the staleness threshold.
func (t *Tracker) IsLive(status *models.ConnectionStatus, now time.Time) bool {
	if status == nil || !status.IsConnected {
		return false
	}
	return now.Sub(status.LastHeartbeat) < t.staleness
}

// StatusView is a ConnectionStatus annotated with the derived liveness
// verdict, ready for observer-facing responses.
type StatusView struct {
	models.ConnectionStatus
	Live bool `json:"live"`
}

// View wraps a status row with its derived liveness.
func (t *Tracker) View(status *models.ConnectionStatus, now time.Time) *StatusView {
	return &StatusView{
		ConnectionStatus: *status,
		Live:             t.IsLive(status, now),
	}
}
