// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package companion

import (
	"context"
	"runtime"
	"time"

	"github.com/spinwire/spinwire/internal/config"
	"github.com/spinwire/spinwire/internal/logging"
	"github.com/spinwire/spinwire/internal/models"
)

// Version is the companion app version reported with every call.
var Version = "dev"

const defaultHeartbeatInterval = 30 * time.Second

// Runtime owns the companion's moving parts: one track source and one
// heartbeat timer, both cancellable through the Run context. All sends
// go through the shared client.
type Runtime struct {
	cfg    *config.CompanionConfig
	client *Client
	source TrackSource
}

// NewRuntime wires a runtime around an already-authenticated client and
// a selected source.
func NewRuntime(cfg *config.CompanionConfig, client *Client, source TrackSource) *Runtime {
	return &Runtime{
		cfg:    cfg,
		client: client,
		source: source,
	}
}

// Source returns the active track source.
func (rt *Runtime) Source() TrackSource {
	return rt.source
}

// HandleTrack forwards one detected event to the server. Send failures
// drop the event; delivery is at-most-once and the companion keeps no
// outbound queue.
func (rt *Runtime) HandleTrack(ctx context.Context, event models.TrackEvent) {
	req := &models.TrackEventRequest{
		Track:           event,
		DetectionMethod: rt.source.Method(),
		SourceFile:      rt.source.SourceFile(),
		Platform:        runtime.GOOS,
		AppVersion:      Version,
	}

	resp, err := rt.client.SendTrackEvent(ctx, req)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("artist", event.Artist).
			Str("title", event.Title).
			Msg("Failed to report track, event dropped")
		return
	}

	evt := logging.Info().
		Str("artist", event.Artist).
		Str("title", event.Title).
		Bool("matched", resp.Matched)
	if resp.Duplicate {
		evt = evt.Bool("duplicate", true)
	}
	evt.Msg("Track reported")
}

// Shutdown sends the best-effort disconnect notice. Bounded by the
// configured timeout; failure is logged and swallowed so shutdown never
// hangs on the network.
func (rt *Runtime) Shutdown() {
	timeout := rt.cfg.DisconnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rt.client.Disconnect(ctx, runtime.GOOS, Version); err != nil {
		logging.Warn().Err(err).Msg("Disconnect notice failed, shutting down anyway")
		return
	}
	logging.Info().Msg("Disconnect notice sent")
}

// HeartbeatService keeps liveness current independently of track
// detection. Implements suture.Service.
type HeartbeatService struct {
	client   *Client
	source   TrackSource
	interval time.Duration
}

// NewHeartbeatService creates the heartbeat loop.
func NewHeartbeatService(client *Client, source TrackSource, interval time.Duration) *HeartbeatService {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &HeartbeatService{
		client:   client,
		source:   source,
		interval: interval,
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *HeartbeatService) String() string {
	return "heartbeat"
}

// Serve sends one heartbeat immediately so the DJ shows connected at
// startup, then beats on the fixed interval until canceled.
func (s *HeartbeatService) Serve(ctx context.Context) error {
	s.beat(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.beat(ctx)
		}
	}
}

func (s *HeartbeatService) beat(ctx context.Context) {
	hb := &models.HeartbeatRequest{
		Platform:        runtime.GOOS,
		AppVersion:      Version,
		DetectionMethod: s.source.Method(),
	}
	if err := s.client.SendHeartbeat(ctx, hb); err != nil {
		logging.Warn().Err(err).Msg("Heartbeat failed")
	}
}

// SourceService adapts a TrackSource and its event handler into a
// suture.Service.
type SourceService struct {
	runtime *Runtime
}

// NewSourceService wraps the runtime's source.
func NewSourceService(rt *Runtime) *SourceService {
	return &SourceService{runtime: rt}
}

// String implements fmt.Stringer for supervisor logging.
func (s *SourceService) String() string {
	return "track-source"
}

// Serve runs the detection loop until canceled.
func (s *SourceService) Serve(ctx context.Context) error {
	return s.runtime.source.Run(ctx)
}
