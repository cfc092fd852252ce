// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package arbiter fuses the rule-based composite score with the ensemble
// classifier's prediction into the final verdict on a report, applies the
// reputation side effects, and triangulates fabricator positions for flagged
// reports.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roadguard/roadguard/internal/classifier"
	"github.com/roadguard/roadguard/internal/logging"
	"github.com/roadguard/roadguard/internal/metrics"
	"github.com/roadguard/roadguard/internal/report"
	"github.com/roadguard/roadguard/internal/trust"
)

// Config holds the fusion and decision parameters.
type Config struct {
	// BlendWeight is the share of the final fake probability contributed
	// by the rule-based score; the classifier contributes the rest. In
	// degraded mode the rule score contributes everything.
	BlendWeight float64 `koanf:"blend_weight"`

	// FakeThreshold flags the report when the fused fake probability
	// reaches it.
	FakeThreshold float64 `koanf:"fake_threshold"`

	// RealThreshold accepts the report when the fused fake probability is
	// at or below it. Probabilities between the thresholds are UNCERTAIN.
	RealThreshold float64 `koanf:"real_threshold"`

	// MinWitnessObservations is the witness-sighting count required to
	// localize a fabricator.
	MinWitnessObservations int `koanf:"min_witness_observations"`

	// MinRSUObservations is the roadside-unit count that alternatively
	// suffices for localization.
	MinRSUObservations int `koanf:"min_rsu_observations"`
}

// DefaultConfig returns the published arbiter defaults.
func DefaultConfig() Config {
	return Config{
		BlendWeight:            0.5,
		FakeThreshold:          0.7,
		RealThreshold:          0.3,
		MinWitnessObservations: 3,
		MinRSUObservations:     2,
	}
}

// Validate rejects threshold configurations that cannot decide anything.
func (c Config) Validate() error {
	if c.BlendWeight < 0 || c.BlendWeight > 1 {
		return fmt.Errorf("blend_weight %v outside [0,1]", c.BlendWeight)
	}
	if c.FakeThreshold <= 0 || c.FakeThreshold >= 1 {
		return fmt.Errorf("fake_threshold %v outside (0,1)", c.FakeThreshold)
	}
	if c.RealThreshold <= 0 || c.RealThreshold >= 1 {
		return fmt.Errorf("real_threshold %v outside (0,1)", c.RealThreshold)
	}
	if c.RealThreshold >= c.FakeThreshold {
		return fmt.Errorf("real_threshold %v must be below fake_threshold %v", c.RealThreshold, c.FakeThreshold)
	}
	return nil
}

// Dispatcher forwards accepted reports to the emergency-dispatch
// collaborator. Dispatch failures are logged, never propagated: a dispatch
// outage must not change detection verdicts.
type Dispatcher interface {
	Dispatch(ctx context.Context, r *report.IncidentReport, urgency float64) error
}

// Input is everything the arbiter needs to decide one report. The ambient
// observations are used only for localization, never for scoring.
type Input struct {
	Report *report.IncidentReport

	// Composite is the multi-factor scorer's trust-consistency score.
	Composite float64

	// Features is the vector handed to the ensemble classifier.
	Features report.FeatureVector

	// WitnessSightings are positions at which corroborating witnesses
	// observed the reporter.
	WitnessSightings []report.Position

	// RSUSightings are coverage centers of roadside units that received
	// signal from the reporter.
	RSUSightings []report.Position
}

// Arbiter decides reports. Each report is decided exactly once; the
// resulting DetectionResult is immutable.
type Arbiter struct {
	cfg        Config
	ledger     trust.Ledger
	classifier classifier.Classifier
	dispatcher Dispatcher
}

// New creates an arbiter. The classifier may be nil, which pins the arbiter
// to the rule-only path.
func New(cfg Config, ledger trust.Ledger, clf classifier.Classifier, dispatcher Dispatcher) (*Arbiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arbiter config: %w", err)
	}
	if clf == nil {
		clf = classifier.Unavailable()
	}
	return &Arbiter{cfg: cfg, ledger: ledger, classifier: clf, dispatcher: dispatcher}, nil
}

// Decide fuses the scores, produces the verdict, and applies side effects.
// It never fails: classifier unavailability degrades to the rule-only path.
func (a *Arbiter) Decide(ctx context.Context, in Input) *report.DetectionResult {
	ruleFake := 1 - in.Composite

	clfProb, clfErr := a.classifier.Predict(ctx, in.Features)
	degraded := clfErr != nil
	if degraded && !errors.Is(clfErr, classifier.ErrUnavailable) {
		// Unexpected classifier errors degrade the same way, but are
		// worth their own log line.
		logging.Err(clfErr).Str("report", in.Report.ReportID).Msg("classifier error, using rule-only path")
	}

	var fakeProb float64
	if degraded {
		fakeProb = ruleFake
		clfProb = -1
		metrics.DegradedDecisions.Inc()
	} else {
		fakeProb = a.cfg.BlendWeight*ruleFake + (1-a.cfg.BlendWeight)*clfProb
	}

	result := &report.DetectionResult{
		ReportID:              in.Report.ReportID,
		ReporterID:            in.Report.ReporterID,
		RSUID:                 in.Report.RSUID,
		CompositeScore:        in.Composite,
		ClassifierProbability: clfProb,
		FakeProbability:       fakeProb,
		Degraded:              degraded,
		ProcessedAt:           time.Now().UTC(),
	}

	switch {
	case fakeProb >= a.cfg.FakeThreshold:
		result.Decision = report.DecisionFake
		a.ledger.ApplyOutcome(in.Report.ReporterID, trust.OutcomeFake, fakeProb)
		if origin, ok := a.localize(in); ok {
			result.EstimatedOrigin = &origin
			metrics.Localizations.Inc()
		}

	case fakeProb <= a.cfg.RealThreshold:
		result.Decision = report.DecisionReal
		a.ledger.ApplyOutcome(in.Report.ReporterID, trust.OutcomeReal, 1-fakeProb)
		a.forward(ctx, in.Report, 1-fakeProb)

	default:
		// Weak evidence either way: route to manual follow-up and leave
		// the reporter's reputation untouched.
		result.Decision = report.DecisionUncertain
	}

	metrics.Decisions.WithLabelValues(string(result.Decision)).Inc()
	return result
}

func (a *Arbiter) forward(ctx context.Context, r *report.IncidentReport, urgency float64) {
	if a.dispatcher == nil {
		return
	}
	if err := a.dispatcher.Dispatch(ctx, r, urgency); err != nil {
		logging.Err(err).Str("report", r.ReportID).Msg("dispatch forward failed")
		return
	}
	metrics.DispatchesForwarded.Inc()
}
