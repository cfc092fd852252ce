// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package scorer

import (
	"math"
	"testing"

	"github.com/roadguard/roadguard/internal/evidence"
)

func TestDefaultWeightsNormalized(t *testing.T) {
	w := DefaultWeights()
	if err := w.Validate(); err != nil {
		t.Fatalf("default weights rejected: %v", err)
	}
	sum := w.HistoricalTrust + w.WitnessValidation + w.LocationVerification + w.DensityAnalysis
	if math.Abs(sum-1.0) > WeightTolerance {
		t.Fatalf("default weights sum to %v", sum)
	}
}

func TestWeightsValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		w    Weights
	}{
		{
			name: "sum below one",
			w:    Weights{HistoricalTrust: 0.3, WitnessValidation: 0.3, LocationVerification: 0.2, DensityAnalysis: 0.1},
		},
		{
			name: "sum above one",
			w:    Weights{HistoricalTrust: 0.5, WitnessValidation: 0.4, LocationVerification: 0.2, DensityAnalysis: 0.1},
		},
		{
			name: "negative weight",
			w:    Weights{HistoricalTrust: -0.1, WitnessValidation: 0.6, LocationVerification: 0.3, DensityAnalysis: 0.2},
		},
		{
			name: "weight above one",
			w:    Weights{HistoricalTrust: 1.2, WitnessValidation: -0.2, LocationVerification: 0, DensityAnalysis: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.w.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if _, err := New(tt.w); err == nil {
				t.Fatal("New accepted invalid weights")
			}
		})
	}
}

func TestScoreWeightedSum(t *testing.T) {
	s, err := New(DefaultWeights())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		sig  evidence.Signals
		want float64
	}{
		{
			name: "all ones",
			sig:  evidence.Signals{HistoricalTrust: 1, WitnessStrength: 1, LocationPlausibility: 1, DensityConsistency: 1},
			want: 1.0,
		},
		{
			name: "all zeros",
			sig:  evidence.Signals{},
			want: 0.0,
		},
		{
			name: "trusted corroborated report",
			sig:  evidence.Signals{HistoricalTrust: 0.9, WitnessStrength: 1.0, LocationPlausibility: 0.95, DensityConsistency: 1.0},
			want: 0.3*0.9 + 0.4*1.0 + 0.2*0.95 + 0.1*1.0,
		},
		{
			name: "isolated implausible report",
			sig:  evidence.Signals{HistoricalTrust: 0.1, WitnessStrength: 0, LocationPlausibility: 0.111, DensityConsistency: 0.125},
			want: 0.3*0.1 + 0.2*0.111 + 0.1*0.125,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.sig)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("Score = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Fatalf("Score %v outside [0,1]", got)
			}
		})
	}
}
