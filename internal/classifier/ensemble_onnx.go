// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

//go:build onnx

package classifier

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/roadguard/roadguard/internal/report"
)

// EnsembleConfig configures the ONNX-backed ensemble classifier.
type EnsembleConfig struct {
	// ModelPath is the path to the exported ensemble model (.onnx).
	ModelPath string `koanf:"model_path"`

	// SharedLibraryPath is the path to the onnxruntime shared library.
	// Empty uses the loader's default search path.
	SharedLibraryPath string `koanf:"shared_library_path"`

	// InputName and OutputName identify the model's tensors. The export
	// script names them "features" and "probability_fake".
	InputName  string `koanf:"input_name"`
	OutputName string `koanf:"output_name"`
}

// Ensemble runs the pre-trained voting ensemble through onnxruntime. The
// model takes one 13-float feature row and yields one fake probability.
type Ensemble struct {
	session *ort.DynamicAdvancedSession

	mu sync.Mutex // onnxruntime sessions are not safe for concurrent Run
}

// NewEnsemble loads the model. A missing model file is reported as
// ErrUnavailable so callers fall back to the rule-only path.
func NewEnsemble(cfg EnsembleConfig) (*Ensemble, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrUnavailable)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file %s: %v", ErrUnavailable, cfg.ModelPath, err)
	}
	if cfg.InputName == "" {
		cfg.InputName = "features"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "probability_fake"
	}

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("%w: initialize onnxruntime: %v", ErrUnavailable, err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: load model %s: %v", ErrUnavailable, cfg.ModelPath, err)
	}

	return &Ensemble{session: session}, nil
}

// Predict runs one inference. The context deadline is enforced by the Guard
// wrapper, not here; inference itself is a short synchronous call.
func (e *Ensemble) Predict(_ context.Context, fv report.FeatureVector) (float64, error) {
	row := make([]float32, report.FeatureDimensions)
	for i, v := range fv {
		row[i] = float32(v)
	}

	input, err := ort.NewTensor(ort.NewShape(1, report.FeatureDimensions), row)
	if err != nil {
		return 0, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("create output tensor: %w", err)
	}
	defer output.Destroy()

	e.mu.Lock()
	err = e.session.Run(
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
	)
	e.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("%w: inference: %v", ErrUnavailable, err)
	}

	prob := float64(output.GetData()[0])
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return 0, fmt.Errorf("%w: model returned probability %v", ErrUnavailable, prob)
	}
	return prob, nil
}

// Close releases the onnxruntime session.
func (e *Ensemble) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	return nil
}
