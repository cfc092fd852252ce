// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package evallog

import (
	"context"
	"sync"

	"github.com/roadguard/roadguard/internal/report"
)

// Memory is the in-process appender, used when no log path is configured
// and throughout the tests.
type Memory struct {
	tally

	resMu   sync.Mutex
	results []*report.DetectionResult
}

// NewMemory creates an in-memory appender. truth may be nil, which disables
// the confusion counters.
func NewMemory(truth *TruthRegistry) *Memory {
	m := &Memory{}
	m.tally.truth = truth
	return m
}

// Append records the result.
func (m *Memory) Append(_ context.Context, res *report.DetectionResult) error {
	m.resMu.Lock()
	m.results = append(m.results, res)
	m.resMu.Unlock()
	m.observe(res)
	return nil
}

// MarkDropped counts a report rejected before reaching the engine.
func (m *Memory) MarkDropped() { m.markDropped() }

// Counters returns the aggregate tallies.
func (m *Memory) Counters() Counters { return m.counters() }

// Results returns a copy of the appended results in append order.
func (m *Memory) Results() []*report.DetectionResult {
	m.resMu.Lock()
	defer m.resMu.Unlock()
	out := make([]*report.DetectionResult, len(m.results))
	copy(out, m.results)
	return out
}
