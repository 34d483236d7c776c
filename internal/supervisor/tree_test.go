// Spinwire - Live Track Detection and Request Matching for DJs
// Copyright 2026 Spinwire Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spinwire/spinwire

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingService runs until its context is canceled.
type blockingService struct {
	name   string
	serves atomic.Int32
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.serves.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return s.name }

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree := NewTree("test", testLogger(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("threshold = %v", tree.config.FailureThreshold)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v", tree.config.ShutdownTimeout)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
}

func TestTreeRunsBothLayers(t *testing.T) {
	tree := NewTree("test", testLogger(), DefaultTreeConfig())

	messaging := &blockingService{name: "messaging-svc"}
	api := &blockingService{name: "api-svc"}
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for messaging.serves.Load() == 0 || api.serves.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("services did not start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("serve error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}

	unstopped, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("unstopped report: %v", err)
	}
	if len(unstopped) != 0 {
		t.Errorf("unstopped services: %d", len(unstopped))
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	tree := NewTree("test", testLogger(), TreeConfig{
		FailureThreshold: 100,
		FailureDecay:     30,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	crashes := &crashingService{}
	tree.AddMessagingService(crashes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for crashes.serves.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("service not restarted, serves = %d", crashes.serves.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestServeBackgroundClosesChannel(t *testing.T) {
	tree := NewTree("test", testLogger(), DefaultTreeConfig())
	tree.AddAPIService(&blockingService{name: "api-svc"})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	cancel()

	// One error, then a close: a range over the channel must terminate.
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("serve error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error delivered after cancel")
	}

	select {
	case _, ok := <-errCh:
		if ok {
			t.Error("second error delivered, want closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel never closed")
	}
}

// crashingService fails until it has run twice, then blocks.
type crashingService struct {
	serves atomic.Int32
}

func (s *crashingService) Serve(ctx context.Context) error {
	if s.serves.Add(1) < 2 {
		return errors.New("transient failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *crashingService) String() string { return "crashing-svc" }
