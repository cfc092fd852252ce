// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/roadguard/roadguard/internal/metrics"
	"github.com/roadguard/roadguard/internal/report"
)

// GuardConfig bounds classifier calls so a slow or broken model can never
// stall a simulation step.
type GuardConfig struct {
	// LatencyBudget is the maximum time a single prediction may take. A
	// call exceeding it counts as unavailable.
	LatencyBudget time.Duration `koanf:"latency_budget"`

	// FailureThreshold is the number of consecutive failures that trips
	// the breaker.
	FailureThreshold uint32 `koanf:"failure_threshold"`

	// RecoveryTimeout is how long the breaker stays open before probing
	// the classifier again.
	RecoveryTimeout time.Duration `koanf:"recovery_timeout"`
}

// DefaultGuardConfig returns the published guard defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		LatencyBudget:    100 * time.Millisecond,
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// Guard wraps a Classifier with a per-call latency budget and a circuit
// breaker. While the breaker is open, predictions short-circuit to
// ErrUnavailable without touching the inner classifier.
type Guard struct {
	inner   Classifier
	breaker *gobreaker.CircuitBreaker[float64]
	budget  time.Duration
}

// NewGuard wraps inner with the given guard configuration.
func NewGuard(inner Classifier, cfg GuardConfig) *Guard {
	def := DefaultGuardConfig()
	if cfg.LatencyBudget <= 0 {
		cfg.LatencyBudget = def.LatencyBudget
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}

	settings := gobreaker.Settings{
		Name:    "ensemble-classifier",
		Timeout: cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}

	return &Guard{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[float64](settings),
		budget:  cfg.LatencyBudget,
	}
}

// Predict runs the inner classifier under the latency budget. Timeouts,
// inner failures, and an open breaker all surface as ErrUnavailable.
func (g *Guard) Predict(ctx context.Context, fv report.FeatureVector) (float64, error) {
	prob, err := g.breaker.Execute(func() (float64, error) {
		return g.predictWithBudget(ctx, fv)
	})
	if err != nil {
		metrics.ClassifierFailures.Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		if errors.Is(err, ErrUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return prob, nil
}

// State reports the breaker state, for health reporting.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func (g *Guard) predictWithBudget(ctx context.Context, fv report.FeatureVector) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.budget)
	defer cancel()

	type prediction struct {
		prob float64
		err  error
	}
	// Buffered so an over-budget call can still deliver and free its
	// goroutine after we have given up on it.
	done := make(chan prediction, 1)

	start := time.Now()
	go func() {
		prob, err := g.inner.Predict(ctx, fv)
		done <- prediction{prob: prob, err: err}
	}()

	select {
	case p := <-done:
		metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
		return p.prob, p.err
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: exceeded latency budget %s", ErrUnavailable, g.budget)
	}
}
