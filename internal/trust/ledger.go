// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package trust owns per-vehicle reputation state. The ledger is the only
// component that mutates reputation; everything else receives read-only
// snapshots or submits outcome updates.
package trust

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// NeutralScore is the baseline trust for a vehicle with no history. Scores
// decay back toward this value when a vehicle goes unobserved.
const NeutralScore = 0.5

// Outcome is a confirmed verdict fed back into the ledger.
type Outcome string

const (
	OutcomeReal Outcome = "REAL"
	OutcomeFake Outcome = "FAKE"
)

// Reputation summarizes a vehicle's reporting history. Score is always in
// [0,1].
type Reputation struct {
	Score      float64   `json:"score"`
	RealCount  int       `json:"real_count"`
	FakeCount  int       `json:"fake_count"`
	LastUpdate time.Time `json:"last_update"`
}

// Ledger is the injectable reputation store consumed by the pipeline.
type Ledger interface {
	// Get returns the trust score for a vehicle. Unseen vehicles read as
	// NeutralScore; Get never fails and never mutates state.
	Get(vehicleID string) float64

	// Snapshot returns a read-only copy of a vehicle's reputation record.
	Snapshot(vehicleID string) Reputation

	// ApplyOutcome moves the vehicle's score toward 1 (REAL) or 0 (FAKE) by
	// a step proportional to confidence and inversely proportional to the
	// accumulated observation count, then updates counts and timestamp.
	ApplyOutcome(vehicleID string, outcome Outcome, confidence float64)

	// DecayAll nudges every record idle longer than the inactivity threshold
	// a fixed fraction toward NeutralScore. Invoked once per processing
	// window.
	DecayAll(now time.Time)
}

// Config tunes the ledger's update and decay behavior.
type Config struct {
	// LearnLimit bounds the score delta of a single outcome. The first
	// observation for a vehicle moves the score by at most this much;
	// subsequent observations move it progressively less.
	LearnLimit float64 `koanf:"learn_limit"`

	// InactivityThreshold is how long a record may go without updates
	// before decay applies.
	InactivityThreshold time.Duration `koanf:"inactivity_threshold"`

	// DecayFraction is the share of the gap to NeutralScore closed per
	// decayed window, in (0,1].
	DecayFraction float64 `koanf:"decay_fraction"`
}

// DefaultConfig returns the published ledger defaults.
func DefaultConfig() Config {
	return Config{
		LearnLimit:          0.3,
		InactivityThreshold: 60 * time.Second,
		DecayFraction:       0.1,
	}
}

// MemoryLedger is the in-memory Ledger used for the simulation's lifetime.
// All updates for one vehicle are serialized on a per-record mutex, so two
// reports from the same reporter processed concurrently cannot lose updates;
// updates for distinct vehicles proceed concurrently.
type MemoryLedger struct {
	cfg   Config
	clock clock.Clock

	mu      sync.RWMutex
	records map[string]*record
}

type record struct {
	mu  sync.Mutex
	rep Reputation
}

// NewMemoryLedger creates a ledger with the given configuration.
func NewMemoryLedger(cfg Config) *MemoryLedger {
	return newMemoryLedger(cfg, clock.New())
}

// NewMemoryLedgerWithClock creates a ledger with an injected clock, for
// deterministic decay tests.
func NewMemoryLedgerWithClock(cfg Config, clk clock.Clock) *MemoryLedger {
	return newMemoryLedger(cfg, clk)
}

func newMemoryLedger(cfg Config, clk clock.Clock) *MemoryLedger {
	if cfg.LearnLimit <= 0 {
		cfg.LearnLimit = DefaultConfig().LearnLimit
	}
	if cfg.InactivityThreshold <= 0 {
		cfg.InactivityThreshold = DefaultConfig().InactivityThreshold
	}
	if cfg.DecayFraction <= 0 || cfg.DecayFraction > 1 {
		cfg.DecayFraction = DefaultConfig().DecayFraction
	}
	return &MemoryLedger{
		cfg:     cfg,
		clock:   clk,
		records: make(map[string]*record),
	}
}

// Get returns the vehicle's trust score, NeutralScore if unseen.
func (l *MemoryLedger) Get(vehicleID string) float64 {
	return l.Snapshot(vehicleID).Score
}

// Snapshot returns a copy of the vehicle's reputation record. Unseen
// vehicles read as a fresh neutral record; no state is created.
func (l *MemoryLedger) Snapshot(vehicleID string) Reputation {
	l.mu.RLock()
	rec, ok := l.records[vehicleID]
	l.mu.RUnlock()
	if !ok {
		return Reputation{Score: NeutralScore}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.rep
}

// ApplyOutcome applies a confirmed verdict for the vehicle.
func (l *MemoryLedger) ApplyOutcome(vehicleID string, outcome Outcome, confidence float64) {
	rec := l.getOrCreate(vehicleID)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	observations := rec.rep.RealCount + rec.rep.FakeCount
	step := l.cfg.LearnLimit * clamp01(confidence) / float64(1+observations)

	switch outcome {
	case OutcomeReal:
		rec.rep.Score = clamp01(rec.rep.Score + step)
		rec.rep.RealCount++
	case OutcomeFake:
		rec.rep.Score = clamp01(rec.rep.Score - step)
		rec.rep.FakeCount++
	default:
		return
	}
	rec.rep.LastUpdate = l.clock.Now()
}

// DecayAll moves idle records toward NeutralScore. The update timestamp is
// left untouched: decay is not an observation, and an idle record keeps
// converging window after window.
func (l *MemoryLedger) DecayAll(now time.Time) {
	l.mu.RLock()
	recs := make([]*record, 0, len(l.records))
	for _, rec := range l.records {
		recs = append(recs, rec)
	}
	l.mu.RUnlock()

	for _, rec := range recs {
		rec.mu.Lock()
		if now.Sub(rec.rep.LastUpdate) > l.cfg.InactivityThreshold {
			rec.rep.Score += l.cfg.DecayFraction * (NeutralScore - rec.rep.Score)
		}
		rec.mu.Unlock()
	}
}

// Size returns the number of tracked vehicles.
func (l *MemoryLedger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *MemoryLedger) getOrCreate(vehicleID string) *record {
	l.mu.RLock()
	rec, ok := l.records[vehicleID]
	l.mu.RUnlock()
	if ok {
		return rec
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok = l.records[vehicleID]; ok {
		return rec
	}
	rec = &record{rep: Reputation{Score: NeutralScore, LastUpdate: l.clock.Now()}}
	l.records[vehicleID] = rec
	return rec
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
