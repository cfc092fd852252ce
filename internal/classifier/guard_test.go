// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roadguard/roadguard/internal/report"
)

func fixed(prob float64) Classifier {
	return Func(func(context.Context, report.FeatureVector) (float64, error) {
		return prob, nil
	})
}

func slow(delay time.Duration, prob float64) Classifier {
	return Func(func(ctx context.Context, _ report.FeatureVector) (float64, error) {
		select {
		case <-time.After(delay):
			return prob, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
}

func TestGuardPassesThroughPrediction(t *testing.T) {
	g := NewGuard(fixed(0.83), GuardConfig{})
	got, err := g.Predict(context.Background(), report.FeatureVector{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got != 0.83 {
		t.Fatalf("Predict = %v, want 0.83", got)
	}
}

func TestGuardEnforcesLatencyBudget(t *testing.T) {
	g := NewGuard(slow(200*time.Millisecond, 0.5), GuardConfig{LatencyBudget: 10 * time.Millisecond})

	start := time.Now()
	_, err := g.Predict(context.Background(), report.FeatureVector{})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	// The budget, not the slow call, bounds the wait.
	if elapsed > 150*time.Millisecond {
		t.Fatalf("Predict blocked for %v despite 10ms budget", elapsed)
	}
}

func TestGuardTripsBreakerAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	failing := Func(func(context.Context, report.FeatureVector) (float64, error) {
		calls++
		return 0, errors.New("model exploded")
	})
	g := NewGuard(failing, GuardConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	for i := 0; i < 10; i++ {
		if _, err := g.Predict(context.Background(), report.FeatureVector{}); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: error = %v, want ErrUnavailable", i, err)
		}
	}

	// After the breaker opens, the inner classifier stops being called.
	if calls != 3 {
		t.Fatalf("inner classifier called %d times, want 3 before breaker opens", calls)
	}
}

func TestGuardRecoversAfterBreakerTimeout(t *testing.T) {
	healthy := false
	flaky := Func(func(context.Context, report.FeatureVector) (float64, error) {
		if !healthy {
			return 0, errors.New("still broken")
		}
		return 0.42, nil
	})
	g := NewGuard(flaky, GuardConfig{FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond})

	if _, err := g.Predict(context.Background(), report.FeatureVector{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected failure, got %v", err)
	}

	healthy = true
	time.Sleep(30 * time.Millisecond)

	got, err := g.Predict(context.Background(), report.FeatureVector{})
	if err != nil {
		t.Fatalf("Predict after recovery: %v", err)
	}
	if got != 0.42 {
		t.Fatalf("Predict = %v, want 0.42", got)
	}
}

func TestUnavailableClassifier(t *testing.T) {
	_, err := Unavailable().Predict(context.Background(), report.FeatureVector{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}
