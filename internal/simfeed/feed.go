// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package simfeed generates the synthetic vehicular traffic that drives the
// engine: a fleet moving along a simulated highway, honest incident reports
// with corroborating witnesses, and fabricated reports with offset locations.
// It also answers the engine's mobility queries.
package simfeed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/roadguard/roadguard/internal/ingest"
	"github.com/roadguard/roadguard/internal/logging"
	"github.com/roadguard/roadguard/internal/report"
	"github.com/roadguard/roadguard/internal/rsu"
)

// Config tunes the synthetic scenario. The defaults reproduce a ten
// kilometer four-lane highway with two hundred vehicles, three in ten
// reports fabricated.
type Config struct {
	Seed           int64         `koanf:"seed"`
	VehicleCount   int           `koanf:"vehicle_count"`
	MaliciousShare float64       `koanf:"malicious_share"`
	FakeRatio      float64       `koanf:"fake_ratio"`
	HighwayLength  float64       `koanf:"highway_length"`
	RoadHalfWidth  float64       `koanf:"road_half_width"`
	ReportInterval time.Duration `koanf:"report_interval"`
}

// DefaultConfig returns the published scenario defaults.
func DefaultConfig() Config {
	return Config{
		Seed:           1,
		VehicleCount:   200,
		MaliciousShare: 0.2,
		FakeRatio:      0.3,
		HighwayLength:  10000,
		RoadHalfWidth:  50,
		ReportInterval: time.Second,
	}
}

// Publisher is the outbound side of the report stream.
type Publisher interface {
	Publish(env *ingest.ReportEnvelope) error
}

type vehicleState struct {
	id        string
	malicious bool
	origin    report.Position
	speed     float64
	direction float64
}

// Feed owns the fleet and generates report envelopes. It implements the
// engine's MobilityProvider: positions are a pure function of the seed and
// the query time, so the engine and the generator always agree on where
// everybody is.
type Feed struct {
	cfg    Config
	epoch  time.Time
	clk    clock.Clock
	pub    Publisher
	layout *rsu.Layout

	fleet     []vehicleState
	byID      map[string]int
	honest    []int
	malicious []int

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds the fleet from the seed. Generated reports are addressed to
// the nearest unit of the given layout, the same layout the engine routes
// on. pub may be nil when the feed is used purely as a mobility provider;
// a nil layout falls back to the default placement.
func New(cfg Config, pub Publisher, layout *rsu.Layout) *Feed {
	def := DefaultConfig()
	if cfg.VehicleCount <= 0 {
		cfg.VehicleCount = def.VehicleCount
	}
	if cfg.MaliciousShare <= 0 || cfg.MaliciousShare >= 1 {
		cfg.MaliciousShare = def.MaliciousShare
	}
	if cfg.FakeRatio < 0 || cfg.FakeRatio > 1 {
		cfg.FakeRatio = def.FakeRatio
	}
	if cfg.HighwayLength <= 0 {
		cfg.HighwayLength = def.HighwayLength
	}
	if cfg.RoadHalfWidth <= 0 {
		cfg.RoadHalfWidth = def.RoadHalfWidth
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = def.ReportInterval
	}

	if layout == nil {
		layout = rsu.DefaultLayout(0)
	}

	f := &Feed{
		cfg:    cfg,
		clk:    clock.New(),
		pub:    pub,
		layout: layout,
		byID:   make(map[string]int, cfg.VehicleCount),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
	f.epoch = f.clk.Now()

	for i := 0; i < cfg.VehicleCount; i++ {
		v := vehicleState{
			id:        fmt.Sprintf("veh-%03d", i),
			malicious: f.rng.Float64() < cfg.MaliciousShare,
			origin: report.Position{
				X: f.rng.Float64() * cfg.HighwayLength,
				Y: f.rng.Float64()*2*cfg.RoadHalfWidth - cfg.RoadHalfWidth,
			},
			speed:     15 + f.rng.Float64()*20,
			direction: 1,
		}
		if f.rng.Float64() < 0.5 {
			v.direction = -1
		}
		f.byID[v.id] = len(f.fleet)
		f.fleet = append(f.fleet, v)
		if v.malicious {
			f.malicious = append(f.malicious, i)
		} else {
			f.honest = append(f.honest, i)
		}
	}
	// A degenerate seed could make the whole fleet one role; force at
	// least one of each so both report kinds stay generable.
	if len(f.honest) == 0 {
		f.fleet[0].malicious = false
		f.honest = append(f.honest, 0)
	}
	if len(f.malicious) == 0 {
		f.fleet[0].malicious = true
		f.malicious = append(f.malicious, 0)
		f.honest = f.honest[1:]
	}
	return f
}

// SetClock replaces the wall clock, for deterministic tests. Call before
// any generation; it also resets the epoch.
func (f *Feed) SetClock(clk clock.Clock) {
	f.clk = clk
	f.epoch = clk.Now()
}

// positionAt is the vehicle's position at the given instant, wrapping at
// the highway ends.
func (f *Feed) positionAt(v *vehicleState, at time.Time) report.Position {
	elapsed := at.Sub(f.epoch).Seconds()
	x := math.Mod(v.origin.X+v.direction*v.speed*elapsed, f.cfg.HighwayLength)
	if x < 0 {
		x += f.cfg.HighwayLength
	}
	return report.Position{X: x, Y: v.origin.Y}
}

// Nearby returns the vehicles within radius of the center at the given
// instant, nearest first.
func (f *Feed) Nearby(center report.Position, radius float64, at time.Time) []report.Vehicle {
	type scored struct {
		v report.Vehicle
		d float64
	}
	var hits []scored
	for i := range f.fleet {
		v := &f.fleet[i]
		pos := f.positionAt(v, at)
		d := pos.DistanceTo(center)
		if d <= radius {
			hits = append(hits, scored{f.vehicleAt(v, pos), d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].d < hits[j].d })
	out := make([]report.Vehicle, len(hits))
	for i, h := range hits {
		out[i] = h.v
	}
	return out
}

// Locate returns a vehicle's state at the given instant.
func (f *Feed) Locate(id string, at time.Time) (report.Vehicle, bool) {
	i, ok := f.byID[id]
	if !ok {
		return report.Vehicle{}, false
	}
	v := &f.fleet[i]
	return f.vehicleAt(v, f.positionAt(v, at)), true
}

func (f *Feed) vehicleAt(v *vehicleState, pos report.Position) report.Vehicle {
	role := report.RoleOrdinary
	if v.malicious {
		role = report.RoleMalicious
	}
	return report.Vehicle{ID: v.id, Role: role, Position: pos, Speed: v.speed}
}

// Generate produces one report envelope at the given instant: fabricated
// with probability FakeRatio (always from a malicious vehicle), honest
// otherwise.
func (f *Feed) Generate(now time.Time) *ingest.ReportEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rng.Float64() < f.cfg.FakeRatio {
		return f.generateFake(now)
	}
	return f.generateHonest(now)
}

// generateHonest places the incident at the reporter with a small location
// error and lists nearby vehicles as witnesses.
func (f *Feed) generateHonest(now time.Time) *ingest.ReportEnvelope {
	v := &f.fleet[f.honest[f.rng.Intn(len(f.honest))]]
	pos := f.positionAt(v, now)
	incident := report.Position{
		X: pos.X + f.rng.NormFloat64()*5,
		Y: pos.Y + f.rng.NormFloat64()*2,
	}

	wantWitnesses := 2 + f.rng.Intn(3)
	var witnesses []string
	for _, w := range f.Nearby(incident, 500, now) {
		if w.ID == v.id {
			continue
		}
		witnesses = append(witnesses, w.ID)
		if len(witnesses) == wantWitnesses {
			break
		}
	}

	return &ingest.ReportEnvelope{
		Report: report.IncidentReport{
			ReportID:         uuid.New().String(),
			ReporterID:       v.id,
			Kind:             f.randomKind(),
			Location:         incident,
			ReporterPosition: pos,
			Timestamp:        now,
			Witnesses:        witnesses,
			RSUID:            f.nearestUnit(pos),
		},
		HasTruth: true,
	}
}

// generateFake offsets the claimed incident well away from the reporter and
// lists at most one invented witness.
func (f *Feed) generateFake(now time.Time) *ingest.ReportEnvelope {
	v := &f.fleet[f.malicious[f.rng.Intn(len(f.malicious))]]
	pos := f.positionAt(v, now)

	offset := 100 + f.rng.Float64()*700
	sign := 1.0
	if f.rng.Float64() < 0.5 {
		sign = -1
	}
	incident := report.Position{
		X: pos.X + sign*offset,
		Y: pos.Y + f.rng.Float64()*200 - 100,
	}

	var witnesses []string
	if f.rng.Float64() >= 0.7 {
		witnesses = []string{fmt.Sprintf("ghost-%03d", f.rng.Intn(100))}
	}

	return &ingest.ReportEnvelope{
		Report: report.IncidentReport{
			ReportID:         uuid.New().String(),
			ReporterID:       v.id,
			Kind:             f.randomKind(),
			Location:         incident,
			ReporterPosition: pos,
			Timestamp:        now,
			Witnesses:        witnesses,
			RSUID:            f.nearestUnit(pos),
		},
		Fabricated: true,
		HasTruth:   true,
	}
}

func (f *Feed) randomKind() report.Kind {
	kinds := []report.Kind{report.KindAccident, report.KindBreakdown, report.KindHazard}
	return kinds[f.rng.Intn(len(kinds))]
}

// nearestUnit names the layout unit closest to the reporter, so generated
// reports route to the same unit the engine would pick.
func (f *Feed) nearestUnit(pos report.Position) string {
	if u := f.layout.Nearest(pos); u != nil {
		return u.ID
	}
	return ""
}

// Serve emits one report per interval until the context is canceled. It
// satisfies suture.Service.
func (f *Feed) Serve(ctx context.Context) error {
	if f.pub == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := f.clk.Ticker(f.cfg.ReportInterval)
	defer ticker.Stop()
	logging.Info().
		Int("vehicles", f.cfg.VehicleCount).
		Float64("fake_ratio", f.cfg.FakeRatio).
		Msg("simulation feed started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := f.pub.Publish(f.Generate(now)); err != nil {
				logging.Err(err).Msg("publish generated report")
			}
		}
	}
}
