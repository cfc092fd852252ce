// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// mockService counts starts and can fail its first runs to exercise
// restart behavior.
type mockService struct {
	starts    atomic.Int32
	failFirst int32
}

func (s *mockService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failFirst {
		return errors.New("mock failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{})
	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
	def := DefaultTreeConfig()
	if tree.config != def {
		t.Errorf("config = %+v, want defaults %+v", tree.config, def)
	}
}

func TestTreeStartsServicesInEveryLayer(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})

	data := &mockService{}
	proc := &mockService{}
	ing := &mockService{}
	ops := &mockService{}
	tree.AddDataService(data)
	tree.AddProcessingService(proc)
	tree.AddIngestService(ing)
	tree.AddOpsService(ops)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go tree.Serve(ctx)
	time.Sleep(150 * time.Millisecond)

	for name, svc := range map[string]*mockService{
		"data": data, "processing": proc, "ingest": ing, "ops": ops,
	} {
		if svc.starts.Load() < 1 {
			t.Errorf("%s layer service was not started", name)
		}
	}
}

func TestTreeRestartsFailingService(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := &mockService{failFirst: 2}
	stable := &mockService{}
	tree.AddIngestService(failing)
	tree.AddProcessingService(stable)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	go tree.Serve(ctx)
	time.Sleep(300 * time.Millisecond)

	if failing.starts.Load() < 3 {
		t.Errorf("failing service started %d times, want at least 3", failing.starts.Load())
	}
	if stable.starts.Load() < 1 {
		t.Error("stable service was not started")
	}
}

func TestTreeShutsDownGracefully(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	tree.AddProcessingService(&mockService{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("tree did not shut down in time")
	}
}
