// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package rsu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/roadguard/roadguard/internal/arbiter"
	"github.com/roadguard/roadguard/internal/classifier"
	"github.com/roadguard/roadguard/internal/evidence"
	"github.com/roadguard/roadguard/internal/report"
	"github.com/roadguard/roadguard/internal/scorer"
	"github.com/roadguard/roadguard/internal/trust"
)

type staticMobility struct {
	vehicles map[string]report.Vehicle
}

func (m *staticMobility) Nearby(center report.Position, radius float64, _ time.Time) []report.Vehicle {
	var out []report.Vehicle
	for _, v := range m.vehicles {
		if v.Position.DistanceTo(center) <= radius {
			out = append(out, v)
		}
	}
	return out
}

func (m *staticMobility) Locate(id string, _ time.Time) (report.Vehicle, bool) {
	v, ok := m.vehicles[id]
	return v, ok
}

type memorySink struct {
	mu      sync.Mutex
	results []*report.DetectionResult
}

func (s *memorySink) Append(_ context.Context, res *report.DetectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

func (s *memorySink) byReport(id string) *report.DetectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.ReportID == id {
			return r
		}
	}
	return nil
}

func newTestEngine(t *testing.T, ledger trust.Ledger, mobility MobilityProvider, sink Sink) *Engine {
	t.Helper()
	sc, err := scorer.New(scorer.DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	arb, err := arbiter.New(arbiter.DefaultConfig(), ledger, classifier.Unavailable(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(DefaultEngineConfig(), DefaultLayout(0), ledger,
		evidence.NewExtractor(evidence.DefaultConfig()), sc, arb, mobility, sink)
}

func at(x float64) report.Position { return report.Position{X: x, Y: 0} }

func TestUnitEnqueueOverflow(t *testing.T) {
	u := NewUnit("rsu-t", report.Position{}, 500, 2)
	a := &report.IncidentReport{ReportID: "a"}
	b := &report.IncidentReport{ReportID: "b"}
	c := &report.IncidentReport{ReportID: "c"}

	if err := u.Enqueue(a); err != nil {
		t.Fatal(err)
	}
	if err := u.Enqueue(b); err != nil {
		t.Fatal(err)
	}
	if err := u.Enqueue(c); !errors.Is(err, ErrQueueOverflow) {
		t.Fatalf("third enqueue error = %v, want ErrQueueOverflow", err)
	}

	// The overflowing report is the one rejected; the queue keeps arrival
	// order.
	batch := u.drain()
	if len(batch) != 2 || batch[0].ReportID != "a" || batch[1].ReportID != "b" {
		t.Fatalf("drained batch = %v", batch)
	}
	if u.Pending() != 0 {
		t.Error("drain left reports pending")
	}
}

func TestLayoutRouting(t *testing.T) {
	layout := DefaultLayout(0)

	tests := []struct {
		name     string
		rsuID    string
		position report.Position
		want     string
	}{
		{"named unit wins", "rsu-3", at(100), "rsu-3"},
		{"coverage fallback", "", at(2100), "rsu-1"},
		{"unknown unit id falls back to coverage", "rsu-99", at(3900), "rsu-2"},
		{"gap between units unroutable", "", at(1000), ""},
		{"unknown position unroutable", "", report.Position{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &report.IncidentReport{RSUID: tt.rsuID, ReporterPosition: tt.position}
			u, ok := layout.Route(r)
			if tt.want == "" {
				if ok {
					t.Fatalf("routed to %s, want unroutable", u.ID)
				}
				return
			}
			if !ok || u.ID != tt.want {
				t.Fatalf("routed to %v (ok=%v), want %s", u, ok, tt.want)
			}
		})
	}
}

func TestUniformLayoutPlacement(t *testing.T) {
	layout := UniformLayout(11, 1000, 300, 0)

	units := layout.Units()
	if len(units) != 11 {
		t.Fatalf("got %d units, want 11", len(units))
	}
	for i, u := range units {
		want := report.Position{X: float64(i) * 1000, Y: -50}
		if u.Center != want || u.Radius != 300 {
			t.Fatalf("unit %d placed at %+v radius %v, want %+v radius 300", i, u.Center, u.Radius, want)
		}
	}

	// Zero values fall back to the default placement.
	if def := UniformLayout(0, 0, 0, 0); len(def.Units()) != DefaultUnitCount {
		t.Errorf("zero-config layout has %d units, want %d", len(def.Units()), DefaultUnitCount)
	}
}

func TestLayoutNearest(t *testing.T) {
	layout := UniformLayout(11, 1000, 300, 0)

	tests := []struct {
		x    float64
		want string
	}{
		{0, "rsu-0"},
		{1500, "rsu-1"}, // ties break toward the earlier unit
		{1501, "rsu-2"},
		{25000, "rsu-10"},
	}
	for _, tt := range tests {
		if got := layout.Nearest(at(tt.x)); got.ID != tt.want {
			t.Errorf("Nearest(%.0f) = %s, want %s", tt.x, got.ID, tt.want)
		}
	}
}

func TestLayoutCovering(t *testing.T) {
	layout := DefaultLayout(0)
	// Midway between rsu-0 and rsu-1 with a wide enough y offset still only
	// reaches neither; directly under rsu-2's center reaches exactly one.
	if got := len(layout.Covering(report.Position{X: 4000, Y: -50})); got != 1 {
		t.Errorf("covering units at rsu-2 center = %d, want 1", got)
	}
	if got := len(layout.Covering(at(1000))); got != 0 {
		t.Errorf("covering units in the gap = %d, want 0", got)
	}
}

func TestStepDecidesHonestReport(t *testing.T) {
	ledger := trust.NewMemoryLedger(trust.DefaultConfig())
	// Build up trust first so the scenario starts from a credible reporter.
	for i := 0; i < 30; i++ {
		ledger.ApplyOutcome("veh-honest", trust.OutcomeReal, 1)
	}

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	mobility := &staticMobility{vehicles: map[string]report.Vehicle{
		"veh-honest": {ID: "veh-honest", Position: at(95), Speed: 20},
		"wit-1":      {ID: "wit-1", Position: at(110), Speed: 18},
		"wit-2":      {ID: "wit-2", Position: at(80), Speed: 22},
		"wit-3":      {ID: "wit-3", Position: at(120), Speed: 19},
		"bg-1":       {ID: "bg-1", Position: at(300), Speed: 25},
		"bg-2":       {ID: "bg-2", Position: at(250), Speed: 24},
		"bg-3":       {ID: "bg-3", Position: at(150), Speed: 21},
		"bg-4":       {ID: "bg-4", Position: at(350), Speed: 26},
		"bg-5":       {ID: "bg-5", Position: at(400), Speed: 23},
		"bg-6":       {ID: "bg-6", Position: at(90), Speed: 20},
		"bg-7":       {ID: "bg-7", Position: at(200), Speed: 22},
		"bg-8":       {ID: "bg-8", Position: at(100), Speed: 19},
	}}
	sink := &memorySink{}
	eng := newTestEngine(t, ledger, mobility, sink)

	unit, _ := eng.Layout().Lookup("rsu-0")
	r := &report.IncidentReport{
		ReportID:         "rpt-honest",
		ReporterID:       "veh-honest",
		Kind:             report.KindAccident,
		Location:         at(100),
		ReporterPosition: at(95),
		Timestamp:        now,
		Witnesses:        []string{"wit-1", "wit-2", "wit-3"},
		RSUID:            "rsu-0",
	}
	if err := unit.Enqueue(r); err != nil {
		t.Fatal(err)
	}

	stats := eng.Step(context.Background(), now)
	if stats.Reports != 1 || stats.Real != 1 {
		t.Fatalf("stats = %+v, want 1 report decided REAL", stats)
	}
	res := sink.byReport("rpt-honest")
	if res == nil {
		t.Fatal("result not appended to sink")
	}
	if res.Decision != report.DecisionReal {
		t.Fatalf("decision = %s (composite %v), want REAL", res.Decision, res.CompositeScore)
	}
	if res.CompositeScore < 0.85 {
		t.Errorf("composite = %v, want near 1 for a corroborated trusted report", res.CompositeScore)
	}
}

func TestStepFlagsFabricationAndLocalizes(t *testing.T) {
	ledger := trust.NewMemoryLedger(trust.DefaultConfig())
	for i := 0; i < 30; i++ {
		ledger.ApplyOutcome("veh-liar", trust.OutcomeFake, 1)
	}

	now := time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)
	// The fabricator claims an incident 800 m from where it actually is,
	// with no witnesses and nobody near the claimed location. Three vehicles
	// in beacon range of its true position can bound it.
	mobility := &staticMobility{vehicles: map[string]report.Vehicle{
		"veh-liar": {ID: "veh-liar", Position: report.Position{X: 2000, Y: -450}, Speed: 30},
		"obs-1":    {ID: "obs-1", Position: report.Position{X: 1950, Y: -450}, Speed: 25},
		"obs-2":    {ID: "obs-2", Position: report.Position{X: 2050, Y: -450}, Speed: 24},
		"obs-3":    {ID: "obs-3", Position: report.Position{X: 2000, Y: -400}, Speed: 26},
	}}
	sink := &memorySink{}
	eng := newTestEngine(t, ledger, mobility, sink)

	unit, _ := eng.Layout().Lookup("rsu-1")
	r := &report.IncidentReport{
		ReportID:         "rpt-liar",
		ReporterID:       "veh-liar",
		Kind:             report.KindAccident,
		Location:         report.Position{X: 2800, Y: -450},
		ReporterPosition: report.Position{X: 2000, Y: -450},
		Timestamp:        now,
		RSUID:            "rsu-1",
	}
	if err := unit.Enqueue(r); err != nil {
		t.Fatal(err)
	}

	stats := eng.Step(context.Background(), now)
	if stats.Fake != 1 {
		t.Fatalf("stats = %+v, want 1 FAKE", stats)
	}
	res := sink.byReport("rpt-liar")
	if res == nil {
		t.Fatal("result not appended to sink")
	}
	if res.Decision != report.DecisionFake {
		t.Fatalf("decision = %s (pFake %v), want FAKE", res.Decision, res.FakeProbability)
	}
	if !res.Degraded {
		t.Error("result not marked degraded with the stub classifier")
	}
	if res.EstimatedOrigin == nil {
		t.Fatal("fabrication with three independent sightings was not localized")
	}
	// The centroid must land near the true position, far from the claim.
	if d := res.EstimatedOrigin.DistanceTo(report.Position{X: 2000, Y: -450}); d > 200 {
		t.Errorf("estimated origin %+v is %.0f m from the true position", *res.EstimatedOrigin, d)
	}
}

func TestStepPreservesArrivalOrderPerUnit(t *testing.T) {
	ledger := trust.NewMemoryLedger(trust.DefaultConfig())
	sink := &memorySink{}
	eng := newTestEngine(t, ledger, nil, sink)
	unit, _ := eng.Layout().Lookup("rsu-0")

	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		err := unit.Enqueue(&report.IncidentReport{
			ReportID:         fmt.Sprintf("rpt-%02d", i),
			ReporterID:       "veh-1",
			Kind:             report.KindHazard,
			Location:         at(100),
			ReporterPosition: at(95),
			Timestamp:        now.Add(time.Duration(i) * time.Second),
			RSUID:            "rsu-0",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	stats := eng.Step(context.Background(), now)
	if stats.Reports != 10 {
		t.Fatalf("processed %d reports, want 10", stats.Reports)
	}
	for i, res := range sink.results {
		want := fmt.Sprintf("rpt-%02d", i)
		if res.ReportID != want {
			t.Fatalf("result %d = %s, want %s", i, res.ReportID, want)
		}
	}
}

func TestConsistencyAgreementAmongNeighbors(t *testing.T) {
	eng := newTestEngine(t, trust.NewMemoryLedger(trust.DefaultConfig()), nil, nil)
	now := time.Now().UTC()
	mk := func(id string, kind report.Kind, x float64) *report.IncidentReport {
		return &report.IncidentReport{ReportID: id, ReporterID: id, Kind: kind, Location: at(x), Timestamp: now}
	}

	batch := []*report.IncidentReport{
		mk("a", report.KindAccident, 100),
		mk("b", report.KindAccident, 150),
		mk("c", report.KindHazard, 200),
		mk("d", report.KindAccident, 5000), // out of consistency radius
	}

	if got := eng.consistency(batch[0], batch, 0); got != 0.5 {
		t.Errorf("consistency = %v, want 0.5 (one agreeing of two neighbors)", got)
	}
	if got := eng.consistency(batch[3], batch, 3); got != evidence.NeutralSignal {
		t.Errorf("isolated report consistency = %v, want neutral", got)
	}
}

func TestObserveReporterFrequencyResetsPerWindow(t *testing.T) {
	eng := newTestEngine(t, trust.NewMemoryLedger(trust.DefaultConfig()), nil, nil)
	now := time.Now().UTC()

	if _, freq := eng.observeReporter("veh-1", now); freq != 1 {
		t.Fatalf("first observation frequency = %v, want 1", freq)
	}
	last, freq := eng.observeReporter("veh-1", now.Add(time.Second))
	if freq != 2 {
		t.Fatalf("second observation frequency = %v, want 2", freq)
	}
	if !last.Equal(now) {
		t.Fatalf("last report at = %v, want %v", last, now)
	}

	eng.resetWindow()
	last, freq = eng.observeReporter("veh-1", now.Add(2*time.Second))
	if freq != 1 {
		t.Errorf("post-window frequency = %v, want reset to 1", freq)
	}
	if last.IsZero() {
		t.Error("window reset cleared the last-report timestamp")
	}
}
