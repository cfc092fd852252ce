// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package scorer combines the four evidence signals into one composite
// trust-consistency score via a deterministic weighted sum.
package scorer

import (
	"fmt"
	"math"

	"github.com/roadguard/roadguard/internal/evidence"
)

// WeightTolerance is how far the weight sum may stray from 1.0 before the
// configuration is rejected.
const WeightTolerance = 1e-9

// Weights are the published evidence weights. Each weight must lie in [0,1]
// and the four must sum to 1.0 within WeightTolerance.
type Weights struct {
	HistoricalTrust      float64 `json:"historical_trust" koanf:"historical_trust"`
	WitnessValidation    float64 `json:"witness_validation" koanf:"witness_validation"`
	LocationVerification float64 `json:"location_verification" koanf:"location_verification"`
	DensityAnalysis      float64 `json:"density_analysis" koanf:"density_analysis"`
}

// DefaultWeights returns the published defaults: historical trust 0.30,
// witness validation 0.40, location verification 0.20, density analysis 0.10.
func DefaultWeights() Weights {
	return Weights{
		HistoricalTrust:      0.30,
		WitnessValidation:    0.40,
		LocationVerification: 0.20,
		DensityAnalysis:      0.10,
	}
}

// Validate rejects weight sets that are out of range or do not sum to 1.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"historical_trust", w.HistoricalTrust},
		{"witness_validation", w.WitnessValidation},
		{"location_verification", w.LocationVerification},
		{"density_analysis", w.DensityAnalysis},
	} {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("weight %s = %v outside [0,1]", f.name, f.value)
		}
	}
	sum := w.HistoricalTrust + w.WitnessValidation + w.LocationVerification + w.DensityAnalysis
	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("weights sum to %v, want 1.0 within %v", sum, WeightTolerance)
	}
	return nil
}

// Scorer computes composite scores with a fixed weight set.
type Scorer struct {
	weights Weights
}

// New creates a scorer, validating the weights.
func New(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("scorer weights: %w", err)
	}
	return &Scorer{weights: weights}, nil
}

// Score returns the weighted sum of the four signals, in [0,1]. Higher
// means more likely genuine. Signals arrive pre-normalized from the
// evidence extractor; no further transformation is applied.
func (s *Scorer) Score(sig evidence.Signals) float64 {
	return s.weights.HistoricalTrust*sig.HistoricalTrust +
		s.weights.WitnessValidation*sig.WitnessStrength +
		s.weights.LocationVerification*sig.LocationPlausibility +
		s.weights.DensityAnalysis*sig.DensityConsistency
}

// Weights returns the scorer's weight set.
func (s *Scorer) Weights() Weights {
	return s.weights
}
