// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package classifier exposes the pre-trained ensemble fake-report classifier
// to the pipeline as a narrow capability interface. The core consumes the
// model, it never trains it; any implementation (ONNX session, test stub)
// can be substituted without touching the arbiter.
package classifier

import (
	"context"
	"errors"

	"github.com/roadguard/roadguard/internal/report"
)

// ErrUnavailable signals that no prediction could be produced: the model is
// absent, the call exceeded its latency budget, or the circuit breaker is
// open. The arbiter responds by degrading to the rule-only decision path;
// this error never propagates out of the processing loop.
var ErrUnavailable = errors.New("classifier unavailable")

// Classifier maps a feature vector to the probability the report is fake.
// Predictions are deterministic for a fixed model and input and must be in
// [0,1].
type Classifier interface {
	Predict(ctx context.Context, fv report.FeatureVector) (float64, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, fv report.FeatureVector) (float64, error)

// Predict calls f.
func (f Func) Predict(ctx context.Context, fv report.FeatureVector) (float64, error) {
	return f(ctx, fv)
}

// Unavailable returns a Classifier that always reports ErrUnavailable. It is
// the wired default when no model is configured, keeping the pipeline on the
// documented rule-only path instead of crashing.
func Unavailable() Classifier {
	return Func(func(context.Context, report.FeatureVector) (float64, error) {
		return 0, ErrUnavailable
	})
}
