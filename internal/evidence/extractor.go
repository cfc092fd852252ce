// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package evidence turns a raw incident report plus ambient simulation
// context into the two inputs of the decision path: the fixed-order feature
// vector consumed by the ensemble classifier, and the four discrete evidence
// signals consumed by the multi-factor scorer.
package evidence

import (
	"math"
	"time"

	"github.com/roadguard/roadguard/internal/report"
	"github.com/roadguard/roadguard/internal/trust"
)

// Feature vector layout. The order is fixed and matches the feature set the
// ensemble was trained on; changing it requires a retrained model.
//
//	 0  reporter trust score [0,1]
//	 1  witness count
//	 2  reporter-to-incident distance (m)
//	 3  seconds since the reporter's previous report
//	 4  nearby vehicle count
//	 5  reporter speed (m/s)
//	 6  reporter-to-RSU distance (m)
//	 7  reporter report frequency (reports per window)
//	 8  consistency with nearby reports [0,1]
//	 9  hour of day [0,24)
//	10  witness ratio: witnesses / max(1, nearby vehicles)
//	11  location credibility: 1 / (1 + distance/100)
//	12  report-pattern score: 1 / (1 + frequency)
const (
	featTrust = iota
	featWitnessCount
	featIncidentDistance
	featTimeSinceLast
	featNearbyCount
	featReporterSpeed
	featRSUDistance
	featReportFrequency
	featConsistency
	featHourOfDay
	featWitnessRatio
	featLocationCredibility
	featReportPattern
)

// NeutralSignal is the documented fallback for signals that cannot be
// computed from the available context (no nearby vehicles, unknown reporter
// position). Neutral, not zero: absence of context is not evidence of fraud.
const NeutralSignal = 0.5

// defaultTimeSinceLast is used when the reporter has no prior report.
const defaultTimeSinceLast = 1000 // seconds

// Context carries the ambient simulation state for one report.
type Context struct {
	// NearbyVehicles are the vehicles within the density radius of the
	// claimed incident location at report time, reporter excluded.
	NearbyVehicles []report.Vehicle

	// CorroboratingWitnesses are the report's listed witnesses confirmed
	// present in coverage. A missing or empty set means no corroboration,
	// never an error.
	CorroboratingWitnesses []string

	// ReporterSpeed is the reporter's speed at report time, m/s.
	ReporterSpeed float64

	// RSUPosition is the center of the receiving roadside unit.
	RSUPosition report.Position

	// LastReportAt is when the reporter last submitted a report; zero if
	// never.
	LastReportAt time.Time

	// ReportFrequency is the reporter's reports-per-window rate.
	ReportFrequency float64

	// Consistency is the agreement of this claim with other reports in the
	// same window, in [0,1]. Callers with no basis pass NeutralSignal.
	Consistency float64
}

// Signals are the four pre-normalized evidence factors, each in [0,1],
// higher meaning more consistent with a genuine report.
type Signals struct {
	HistoricalTrust      float64
	WitnessStrength      float64
	LocationPlausibility float64
	DensityConsistency   float64
}

// Config tunes signal normalization.
type Config struct {
	// WitnessSaturation is the witness count at which corroboration
	// strength reaches 1.0.
	WitnessSaturation int `koanf:"witness_saturation"`

	// LocationScale is the distance in meters at which location
	// credibility halves.
	LocationScale float64 `koanf:"location_scale"`

	// ExpectedDensity is the nearby-vehicle count considered normal
	// traffic; density consistency saturates at this count.
	ExpectedDensity float64 `koanf:"expected_density"`
}

// DefaultConfig returns the published extractor defaults.
func DefaultConfig() Config {
	return Config{
		WitnessSaturation: 3,
		LocationScale:     100,
		ExpectedDensity:   8,
	}
}

// Extractor derives features and signals from reports.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an extractor with the given configuration, filling
// zero fields from defaults.
func NewExtractor(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.WitnessSaturation <= 0 {
		cfg.WitnessSaturation = def.WitnessSaturation
	}
	if cfg.LocationScale <= 0 {
		cfg.LocationScale = def.LocationScale
	}
	if cfg.ExpectedDensity <= 0 {
		cfg.ExpectedDensity = def.ExpectedDensity
	}
	return &Extractor{cfg: cfg}
}

// Extract produces the feature vector and discrete signals for one report.
// The reputation snapshot is read-only; Extract never touches the ledger.
func (e *Extractor) Extract(r *report.IncidentReport, rep trust.Reputation, ctx Context) (report.FeatureVector, Signals) {
	witnesses := len(ctx.CorroboratingWitnesses)
	nearby := len(ctx.NearbyVehicles)
	incidentDist := e.incidentDistance(r)
	rsuDist := e.rsuDistance(r, ctx)

	sig := Signals{
		HistoricalTrust:      rep.Score,
		WitnessStrength:      math.Min(1, float64(witnesses)/float64(e.cfg.WitnessSaturation)),
		LocationPlausibility: e.locationPlausibility(r, incidentDist),
		DensityConsistency:   e.densityConsistency(nearby),
	}

	// Unknown reporter position reads as zero distance on the feature
	// path, the value the ensemble was trained with. The -1 sentinel only
	// steers locationPlausibility to its neutral signal.
	featDist := math.Max(0, incidentDist)

	var fv report.FeatureVector
	fv[featTrust] = rep.Score
	fv[featWitnessCount] = float64(witnesses)
	fv[featIncidentDistance] = featDist
	fv[featTimeSinceLast] = timeSinceLast(r.Timestamp, ctx.LastReportAt)
	fv[featNearbyCount] = float64(nearby)
	fv[featReporterSpeed] = ctx.ReporterSpeed
	fv[featRSUDistance] = rsuDist
	fv[featReportFrequency] = ctx.ReportFrequency
	fv[featConsistency] = ctx.Consistency
	fv[featHourOfDay] = hourOfDay(r.Timestamp)
	fv[featWitnessRatio] = float64(witnesses) / math.Max(1, float64(nearby))
	fv[featLocationCredibility] = 1 / (1 + featDist/e.cfg.LocationScale)
	fv[featReportPattern] = 1 / (1 + ctx.ReportFrequency)

	return fv, sig
}

// incidentDistance is the reporter-to-claimed-incident distance, or -1 when
// the reporter position is unknown.
func (e *Extractor) incidentDistance(r *report.IncidentReport) float64 {
	if r.ReporterPosition.Unknown() {
		return -1
	}
	return r.ReporterPosition.DistanceTo(r.Location)
}

func (e *Extractor) rsuDistance(r *report.IncidentReport, ctx Context) float64 {
	if r.ReporterPosition.Unknown() || ctx.RSUPosition.Unknown() {
		return 0
	}
	return r.ReporterPosition.DistanceTo(ctx.RSUPosition)
}

func (e *Extractor) locationPlausibility(r *report.IncidentReport, dist float64) float64 {
	if dist < 0 {
		return NeutralSignal
	}
	return 1 / (1 + dist/e.cfg.LocationScale)
}

// densityConsistency defaults to NeutralSignal when no vehicles are nearby:
// an empty stretch of road says nothing about the claim either way.
func (e *Extractor) densityConsistency(nearby int) float64 {
	if nearby == 0 {
		return NeutralSignal
	}
	return math.Min(1, float64(nearby)/e.cfg.ExpectedDensity)
}

func timeSinceLast(at, last time.Time) float64 {
	if last.IsZero() || !last.Before(at) {
		return defaultTimeSinceLast
	}
	return at.Sub(last).Seconds()
}

func hourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}
