// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package report defines the core data model shared across the detection
// pipeline: incident reports arriving from vehicles, the vehicles themselves,
// and the immutable detection results the pipeline emits.
package report

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedReport is returned when a report is missing required fields.
// Malformed reports are rejected at ingestion, counted, and never reach the
// scorer.
var ErrMalformedReport = errors.New("malformed report")

// Kind is the category of a reported incident.
type Kind string

const (
	KindAccident  Kind = "accident"
	KindBreakdown Kind = "breakdown"
	KindHazard    Kind = "hazard"
)

// Valid reports whether k is a known incident kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAccident, KindBreakdown, KindHazard:
		return true
	}
	return false
}

// Role classifies a vehicle within the simulation. Roles exist for
// evaluation and scenario construction only; the detection path never reads
// them.
type Role string

const (
	RoleOrdinary  Role = "ordinary"
	RoleMalicious Role = "malicious"
	RoleEmergency Role = "emergency"
)

// Decision is the arbiter's verdict on a report.
type Decision string

const (
	// DecisionReal accepts the report as genuine and forwards it to dispatch.
	DecisionReal Decision = "REAL"

	// DecisionFake flags the report as fabricated.
	DecisionFake Decision = "FAKE"

	// DecisionUncertain routes the report to manual follow-up. No reputation
	// update is applied on an uncertain verdict.
	DecisionUncertain Decision = "UNCERTAIN"
)

// Vehicle is a participant in the simulation. Position and Speed are the
// most recent values observed by the mobility provider.
type Vehicle struct {
	ID       string   `json:"id"`
	Role     Role     `json:"role"`
	Position Position `json:"position"`
	Speed    float64  `json:"speed"` // m/s
}

// IncidentReport is a single incident claim submitted by a vehicle to a
// roadside unit. Reports are immutable once created; the pipeline only ever
// reads them.
type IncidentReport struct {
	ReportID         string    `json:"report_id"`
	ReporterID       string    `json:"reporter_id"`
	Kind             Kind      `json:"kind"`
	Location         Position  `json:"location"`          // claimed incident position
	ReporterPosition Position  `json:"reporter_position"` // where the reporter was when sending
	Timestamp        time.Time `json:"timestamp"`
	Witnesses        []string  `json:"witnesses,omitempty"`
	RSUID            string    `json:"rsu_id"`
}

// Validate checks that all required fields are present and well formed.
// A failure wraps ErrMalformedReport.
func (r *IncidentReport) Validate() error {
	switch {
	case r.ReportID == "":
		return fmt.Errorf("%w: missing report id", ErrMalformedReport)
	case r.ReporterID == "":
		return fmt.Errorf("%w: missing reporter id", ErrMalformedReport)
	case !r.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedReport, r.Kind)
	case r.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrMalformedReport)
	case r.Location.Unknown():
		return fmt.Errorf("%w: missing incident location", ErrMalformedReport)
	}
	return nil
}

// DetectionResult records the outcome of processing one report. Created
// exactly once per processed report, immutable thereafter, appended to the
// evaluation log.
type DetectionResult struct {
	ReportID   string `json:"report_id"`
	ReporterID string `json:"reporter_id"`
	RSUID      string `json:"rsu_id"`

	// CompositeScore is the rule-based trust-consistency score in [0,1];
	// higher means more likely genuine.
	CompositeScore float64 `json:"composite_score"`

	// ClassifierProbability is the ensemble's fake probability in [0,1],
	// or -1 when the classifier was unavailable.
	ClassifierProbability float64 `json:"classifier_probability"`

	// FakeProbability is the fused probability the decision was taken on.
	FakeProbability float64 `json:"fake_probability"`

	// Degraded marks results decided on the rule-only path.
	Degraded bool `json:"degraded"`

	Decision Decision `json:"decision"`

	// EstimatedOrigin is the triangulated fabricator position, attached only
	// to FAKE results with sufficient corroborating observations.
	EstimatedOrigin *Position `json:"estimated_origin,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// FeatureDimensions is the fixed length of a FeatureVector. The feature
// order is documented in the evidence package and must not change without a
// retrained model.
const FeatureDimensions = 13

// FeatureVector is the fixed-order numeric input to the ensemble classifier.
// It is derived per report and never stored past the processing of that
// report.
type FeatureVector [FeatureDimensions]float64
