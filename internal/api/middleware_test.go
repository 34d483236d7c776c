// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package api

import (
	"testing"
	"time"
)

func TestIntervalLimiterAllow(t *testing.T) {
	l := NewIntervalLimiter(time.Hour)

	if !l.Allow("dj-1") {
		t.Fatal("first request denied")
	}
	if l.Allow("dj-1") {
		t.Error("second request inside interval allowed")
	}

	// Limits are per identity.
	if !l.Allow("dj-2") {
		t.Error("other identity throttled by dj-1's traffic")
	}
}

func TestIntervalLimiterZeroIntervalDisabled(t *testing.T) {
	l := NewIntervalLimiter(0)

	for i := 0; i < 5; i++ {
		if !l.Allow("dj-1") {
			t.Fatalf("request %d denied with throttling disabled", i)
		}
	}
}

func TestIntervalLimiterRefills(t *testing.T) {
	l := NewIntervalLimiter(20 * time.Millisecond)

	if !l.Allow("dj-1") {
		t.Fatal("first request denied")
	}
	if l.Allow("dj-1") {
		t.Fatal("immediate retry allowed")
	}

	time.Sleep(30 * time.Millisecond)
	if !l.Allow("dj-1") {
		t.Error("request after interval denied")
	}
}
