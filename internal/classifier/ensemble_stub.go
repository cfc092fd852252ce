// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

//go:build !onnx

package classifier

import (
	"context"
	"fmt"

	"github.com/roadguard/roadguard/internal/report"
)

// EnsembleConfig configures the ONNX-backed ensemble classifier. Without
// the onnx build tag it exists only so callers compile unchanged.
type EnsembleConfig struct {
	ModelPath         string `koanf:"model_path"`
	SharedLibraryPath string `koanf:"shared_library_path"`
	InputName         string `koanf:"input_name"`
	OutputName        string `koanf:"output_name"`
}

// Ensemble is the no-op stand-in built without the onnx tag. Every
// prediction reports ErrUnavailable, which keeps the pipeline on the
// documented rule-only path.
type Ensemble struct{}

// NewEnsemble reports the classifier unavailable in non-onnx builds.
func NewEnsemble(_ EnsembleConfig) (*Ensemble, error) {
	return nil, fmt.Errorf("%w: built without onnx support", ErrUnavailable)
}

// Predict always reports ErrUnavailable.
func (e *Ensemble) Predict(_ context.Context, _ report.FeatureVector) (float64, error) {
	return 0, fmt.Errorf("%w: built without onnx support", ErrUnavailable)
}

// Close is a no-op.
func (e *Ensemble) Close() error { return nil }
