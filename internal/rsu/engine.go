// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package rsu

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roadguard/roadguard/internal/arbiter"
	"github.com/roadguard/roadguard/internal/evidence"
	"github.com/roadguard/roadguard/internal/logging"
	"github.com/roadguard/roadguard/internal/metrics"
	"github.com/roadguard/roadguard/internal/report"
	"github.com/roadguard/roadguard/internal/scorer"
	"github.com/roadguard/roadguard/internal/trust"
)

// MobilityProvider answers position queries against the simulated traffic.
// The zero answer is always safe: an unknown vehicle is simply absent.
type MobilityProvider interface {
	// Nearby returns the vehicles within radius of the center at the given
	// instant.
	Nearby(center report.Position, radius float64, at time.Time) []report.Vehicle

	// Locate returns a vehicle's state at the given instant.
	Locate(vehicleID string, at time.Time) (report.Vehicle, bool)
}

// Sink receives every DetectionResult the engine produces.
type Sink interface {
	Append(ctx context.Context, res *report.DetectionResult) error
}

// EngineConfig tunes the processing loop.
type EngineConfig struct {
	// WindowLength is the interval between processing windows.
	WindowLength time.Duration `koanf:"window_length"`

	// DensityRadius bounds the nearby-vehicle query around a claimed
	// incident, meters.
	DensityRadius float64 `koanf:"density_radius"`

	// ConsistencyRadius bounds which same-window reports count as covering
	// the same stretch of road, meters.
	ConsistencyRadius float64 `koanf:"consistency_radius"`
}

// DefaultEngineConfig returns the published engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WindowLength:      10 * time.Second,
		DensityRadius:     500,
		ConsistencyRadius: 500,
	}
}

// WindowStats summarizes one processing window.
type WindowStats struct {
	Reports   int
	Real      int
	Fake      int
	Uncertain int
	Degraded  int
	Localized int
}

type reporterState struct {
	lastReportAt time.Time
	windowCount  int
}

// Engine drains the unit queues once per window and decides every pending
// report. Units are processed in parallel; reports within a unit keep
// arrival order, and the ledger's per-vehicle serialization keeps reputation
// updates ordered even when one vehicle reports through several units.
type Engine struct {
	cfg       EngineConfig
	layout    *Layout
	ledger    trust.Ledger
	extractor *evidence.Extractor
	scorer    *scorer.Scorer
	arbiter   *arbiter.Arbiter
	mobility  MobilityProvider
	sink      Sink
	clk       clock.Clock

	mu             sync.Mutex
	reporters      map[string]*reporterState
	degradedWarned bool
}

// NewEngine wires the processing loop. mobility and sink may be nil; the
// engine then runs without ambient context and discards results, which is
// only useful in tests.
func NewEngine(cfg EngineConfig, layout *Layout, ledger trust.Ledger, ext *evidence.Extractor, sc *scorer.Scorer, arb *arbiter.Arbiter, mobility MobilityProvider, sink Sink) *Engine {
	def := DefaultEngineConfig()
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = def.WindowLength
	}
	if cfg.DensityRadius <= 0 {
		cfg.DensityRadius = def.DensityRadius
	}
	if cfg.ConsistencyRadius <= 0 {
		cfg.ConsistencyRadius = def.ConsistencyRadius
	}
	return &Engine{
		cfg:       cfg,
		layout:    layout,
		ledger:    ledger,
		extractor: ext,
		scorer:    sc,
		arbiter:   arb,
		mobility:  mobility,
		sink:      sink,
		clk:       clock.New(),
		reporters: make(map[string]*reporterState),
	}
}

// SetClock replaces the wall clock, for deterministic tests.
func (e *Engine) SetClock(clk clock.Clock) { e.clk = clk }

// Layout returns the engine's unit layout.
func (e *Engine) Layout() *Layout { return e.layout }

// Serve runs the windowed loop until the context is canceled. It satisfies
// suture.Service.
func (e *Engine) Serve(ctx context.Context) error {
	ticker := e.clk.Ticker(e.cfg.WindowLength)
	defer ticker.Stop()
	logging.Info().
		Dur("window", e.cfg.WindowLength).
		Int("units", len(e.layout.Units())).
		Msg("processing engine started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			e.Step(ctx, now)
		}
	}
}

// Step runs one processing window: decay the ledger once, then drain every
// unit in parallel.
func (e *Engine) Step(ctx context.Context, now time.Time) WindowStats {
	start := e.clk.Now()
	e.ledger.DecayAll(now)
	e.resetWindow()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total WindowStats
	)
	for _, u := range e.layout.Units() {
		wg.Add(1)
		go func(u *Unit) {
			defer wg.Done()
			stats := e.processBatch(ctx, u, u.drain())
			mu.Lock()
			total.Reports += stats.Reports
			total.Real += stats.Real
			total.Fake += stats.Fake
			total.Uncertain += stats.Uncertain
			total.Degraded += stats.Degraded
			total.Localized += stats.Localized
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	if sized, ok := e.ledger.(interface{ Size() int }); ok {
		metrics.LedgerSize.Set(float64(sized.Size()))
	}
	metrics.WindowDuration.Observe(e.clk.Since(start).Seconds())
	logging.Info().
		Int("reports", total.Reports).
		Int("real", total.Real).
		Int("fake", total.Fake).
		Int("uncertain", total.Uncertain).
		Int("degraded", total.Degraded).
		Int("localized", total.Localized).
		Msg("window closed")
	return total
}

// processBatch decides every report drained from one unit, in arrival order.
func (e *Engine) processBatch(ctx context.Context, u *Unit, batch []*report.IncidentReport) WindowStats {
	var stats WindowStats
	for i, r := range batch {
		res := e.processReport(ctx, u, r, batch, i)
		stats.Reports++
		switch res.Decision {
		case report.DecisionReal:
			stats.Real++
		case report.DecisionFake:
			stats.Fake++
		case report.DecisionUncertain:
			stats.Uncertain++
		}
		if res.Degraded {
			stats.Degraded++
			e.warnDegradedOnce()
		}
		if res.EstimatedOrigin != nil {
			stats.Localized++
		}
	}
	return stats
}

func (e *Engine) processReport(ctx context.Context, u *Unit, r *report.IncidentReport, batch []*report.IncidentReport, idx int) *report.DetectionResult {
	start := e.clk.Now()
	rep := e.ledger.Snapshot(r.ReporterID)
	lastAt, freq := e.observeReporter(r.ReporterID, r.Timestamp)

	evCtx := evidence.Context{
		RSUPosition:     u.Center,
		LastReportAt:    lastAt,
		ReportFrequency: freq,
		Consistency:     e.consistency(r, batch, idx),
	}

	var witnessSightings, rsuSightings []report.Position
	if e.mobility != nil {
		evCtx.NearbyVehicles = e.nearby(r)
		evCtx.CorroboratingWitnesses = e.confirmWitnesses(r)
		if v, ok := e.mobility.Locate(r.ReporterID, r.Timestamp); ok {
			evCtx.ReporterSpeed = v.Speed
			witnessSightings, rsuSightings = e.sightingsOf(v, r.Timestamp)
		}
	} else {
		evCtx.CorroboratingWitnesses = r.Witnesses
	}

	fv, sig := e.extractor.Extract(r, rep, evCtx)
	composite := e.scorer.Score(sig)

	res := e.arbiter.Decide(ctx, arbiter.Input{
		Report:           r,
		Composite:        composite,
		Features:         fv,
		WitnessSightings: witnessSightings,
		RSUSightings:     rsuSightings,
	})
	metrics.ProcessingDuration.Observe(e.clk.Since(start).Seconds())

	if e.sink != nil {
		if err := e.sink.Append(ctx, res); err != nil {
			logging.Err(err).Str("report", r.ReportID).Msg("evaluation log append failed")
		}
	}
	return res
}

// nearby returns the vehicles around the claimed incident, reporter excluded.
func (e *Engine) nearby(r *report.IncidentReport) []report.Vehicle {
	all := e.mobility.Nearby(r.Location, e.cfg.DensityRadius, r.Timestamp)
	out := make([]report.Vehicle, 0, len(all))
	for _, v := range all {
		if v.ID != r.ReporterID {
			out = append(out, v)
		}
	}
	return out
}

// confirmWitnesses keeps only the listed witnesses the mobility provider can
// place inside some unit's coverage.
func (e *Engine) confirmWitnesses(r *report.IncidentReport) []string {
	var confirmed []string
	for _, id := range r.Witnesses {
		v, ok := e.mobility.Locate(id, r.Timestamp)
		if !ok || len(e.layout.Covering(v.Position)) == 0 {
			continue
		}
		confirmed = append(confirmed, id)
	}
	return confirmed
}

// sightingsOf gathers the independent observations of the reporter used to
// bound a fabricator: positions of vehicles in beacon range of the reporter,
// and centers of units whose coverage includes it. These come from received
// beacons, not from anything the reporter claims.
func (e *Engine) sightingsOf(reporter report.Vehicle, at time.Time) (witnesses, units []report.Position) {
	for _, v := range e.mobility.Nearby(reporter.Position, e.cfg.DensityRadius, at) {
		if v.ID != reporter.ID {
			witnesses = append(witnesses, v.Position)
		}
	}
	for _, u := range e.layout.Covering(reporter.Position) {
		units = append(units, u.Center)
	}
	return witnesses, units
}

// consistency is the share of other same-window reports near this claim that
// agree on the incident kind. No neighbors means no basis either way.
func (e *Engine) consistency(r *report.IncidentReport, batch []*report.IncidentReport, idx int) float64 {
	neighbors, agreeing := 0, 0
	for i, other := range batch {
		if i == idx {
			continue
		}
		if other.Location.DistanceTo(r.Location) > e.cfg.ConsistencyRadius {
			continue
		}
		neighbors++
		if other.Kind == r.Kind {
			agreeing++
		}
	}
	if neighbors == 0 {
		return evidence.NeutralSignal
	}
	return float64(agreeing) / float64(neighbors)
}

func (e *Engine) observeReporter(id string, at time.Time) (time.Time, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.reporters[id]
	if !ok {
		st = &reporterState{}
		e.reporters[id] = st
	}
	last := st.lastReportAt
	st.windowCount++
	st.lastReportAt = at
	return last, float64(st.windowCount)
}

func (e *Engine) resetWindow() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.reporters {
		st.windowCount = 0
	}
	e.degradedWarned = false
}

// warnDegradedOnce logs classifier unavailability at most once per window.
func (e *Engine) warnDegradedOnce() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.degradedWarned {
		return
	}
	e.degradedWarned = true
	logging.Warn().Msg("classifier unavailable, deciding on rule scores only")
}
