// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package rsu models the roadside units that receive incident reports and
// runs the per-window processing engine that decides them.
package rsu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roadguard/roadguard/internal/metrics"
	"github.com/roadguard/roadguard/internal/report"
)

// ErrQueueOverflow is returned when a unit's pending queue is full. The
// newest report is the one rejected; queued reports are never displaced.
var ErrQueueOverflow = errors.New("rsu: pending queue full")

// DefaultQueueDepth bounds a unit's pending queue.
const DefaultQueueDepth = 256

// Unit is one roadside unit: a coverage area and a bounded queue of reports
// waiting for the next processing window.
type Unit struct {
	ID     string
	Center report.Position
	Radius float64

	mu      sync.Mutex
	depth   int
	pending []*report.IncidentReport
}

// NewUnit creates a unit. A non-positive depth falls back to
// DefaultQueueDepth.
func NewUnit(id string, center report.Position, radius float64, depth int) *Unit {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Unit{ID: id, Center: center, Radius: radius, depth: depth}
}

// Covers reports whether the position lies within the unit's radius.
func (u *Unit) Covers(p report.Position) bool {
	if p.Unknown() {
		return false
	}
	return u.Center.DistanceTo(p) <= u.Radius
}

// Enqueue appends the report to the pending queue in arrival order. A report
// enqueued after a window closes is simply picked up by the next window.
func (u *Unit) Enqueue(r *report.IncidentReport) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.pending) >= u.depth {
		metrics.ReportsDropped.WithLabelValues("overflow").Inc()
		return fmt.Errorf("%w: unit %s depth %d", ErrQueueOverflow, u.ID, u.depth)
	}
	u.pending = append(u.pending, r)
	metrics.ReportsReceived.WithLabelValues(u.ID).Inc()
	metrics.QueueDepth.WithLabelValues(u.ID).Set(float64(len(u.pending)))
	return nil
}

// drain takes the whole pending queue, leaving the unit empty for the next
// window.
func (u *Unit) drain() []*report.IncidentReport {
	u.mu.Lock()
	defer u.mu.Unlock()
	batch := u.pending
	u.pending = nil
	metrics.QueueDepth.WithLabelValues(u.ID).Set(0)
	return batch
}

// Pending returns the current queue length.
func (u *Unit) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending)
}

// Layout is the set of units on the simulated highway.
type Layout struct {
	units []*Unit
	byID  map[string]*Unit
}

// NewLayout builds a layout from the given units. Unit ids must be unique.
func NewLayout(units []*Unit) (*Layout, error) {
	byID := make(map[string]*Unit, len(units))
	for _, u := range units {
		if _, dup := byID[u.ID]; dup {
			return nil, fmt.Errorf("rsu: duplicate unit id %q", u.ID)
		}
		byID[u.ID] = u
	}
	return &Layout{units: units, byID: byID}, nil
}

// Default uniform layout: six units at two-kilometer spacing along a ten
// kilometer highway, fifty meters off the roadway, each covering five
// hundred meters.
const (
	DefaultUnitCount  = 6
	DefaultSpacing    = 2000.0
	DefaultRadius     = 500.0
	defaultRoadOffset = -50.0
)

// UniformLayout places count units at the given spacing along the highway,
// fifty meters off the roadway. Non-positive values fall back to the
// defaults.
func UniformLayout(count int, spacing, radius float64, depth int) *Layout {
	if count <= 0 {
		count = DefaultUnitCount
	}
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	if radius <= 0 {
		radius = DefaultRadius
	}
	units := make([]*Unit, 0, count)
	for i := 0; i < count; i++ {
		units = append(units, NewUnit(
			fmt.Sprintf("rsu-%d", i),
			report.Position{X: float64(i) * spacing, Y: defaultRoadOffset},
			radius,
			depth,
		))
	}
	l, _ := NewLayout(units)
	return l
}

// DefaultLayout is UniformLayout with the default placement.
func DefaultLayout(depth int) *Layout {
	return UniformLayout(DefaultUnitCount, DefaultSpacing, DefaultRadius, depth)
}

// Units returns the layout's units in placement order.
func (l *Layout) Units() []*Unit { return l.units }

// Lookup returns the unit with the given id.
func (l *Layout) Lookup(id string) (*Unit, bool) {
	u, ok := l.byID[id]
	return u, ok
}

// Route picks the unit for a report: the unit named by the report if it
// exists, otherwise the nearest unit covering the reporter's position. A
// report no unit can receive is unroutable.
func (l *Layout) Route(r *report.IncidentReport) (*Unit, bool) {
	if r.RSUID != "" {
		if u, ok := l.byID[r.RSUID]; ok {
			return u, true
		}
	}
	var best *Unit
	bestDist := 0.0
	for _, u := range l.units {
		if !u.Covers(r.ReporterPosition) {
			continue
		}
		d := u.Center.DistanceTo(r.ReporterPosition)
		if best == nil || d < bestDist {
			best, bestDist = u, d
		}
	}
	return best, best != nil
}

// Nearest returns the unit closest to the position regardless of coverage,
// or nil for an empty layout. Vehicles address their reports to it.
func (l *Layout) Nearest(p report.Position) *Unit {
	var best *Unit
	bestDist := 0.0
	for _, u := range l.units {
		d := u.Center.DistanceTo(p)
		if best == nil || d < bestDist {
			best, bestDist = u, d
		}
	}
	return best
}

// Covering returns every unit whose coverage includes the position. Used to
// bound a fabricator's location.
func (l *Layout) Covering(p report.Position) []*Unit {
	var out []*Unit
	for _, u := range l.units {
		if u.Covers(p) {
			out = append(out, u)
		}
	}
	return out
}
