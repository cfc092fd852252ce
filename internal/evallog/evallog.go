// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package evallog is the append-only evaluation log: every DetectionResult
// is recorded, and aggregate counters track decision quality. Ground-truth
// labels enter only here, after decisions are made; the detection path never
// sees them.
package evallog

import (
	"context"
	"sync"

	"github.com/roadguard/roadguard/internal/report"
)

// Counters are the aggregate evaluation tallies. Confusion counts are only
// advanced for reports whose ground truth was registered; UNCERTAIN
// decisions are excluded from the confusion matrix.
type Counters struct {
	Reports   uint64 `json:"reports"`
	Real      uint64 `json:"real"`
	Fake      uint64 `json:"fake"`
	Uncertain uint64 `json:"uncertain"`
	Dropped   uint64 `json:"dropped"`

	TruePositives  uint64 `json:"true_positives"`
	FalsePositives uint64 `json:"false_positives"`
	TrueNegatives  uint64 `json:"true_negatives"`
	FalseNegatives uint64 `json:"false_negatives"`
}

// Appender records detection results.
type Appender interface {
	Append(ctx context.Context, res *report.DetectionResult) error
	Counters() Counters
}

// TruthRegistry holds ground-truth labels keyed by report id, registered at
// ingestion and consumed when the corresponding result is appended. Label
// true means the report was fabricated.
type TruthRegistry struct {
	mu     sync.Mutex
	labels map[string]bool
}

func NewTruthRegistry() *TruthRegistry {
	return &TruthRegistry{labels: make(map[string]bool)}
}

// Register stores the label for a report. Overwrites are harmless; each
// label is consumed at most once.
func (t *TruthRegistry) Register(reportID string, fabricated bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.labels[reportID] = fabricated
	t.mu.Unlock()
}

func (t *TruthRegistry) take(reportID string) (fabricated, known bool) {
	if t == nil {
		return false, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fabricated, known = t.labels[reportID]
	if known {
		delete(t.labels, reportID)
	}
	return fabricated, known
}

// tally accumulates Counters from results. Shared by the appender
// implementations.
type tally struct {
	mu    sync.Mutex
	c     Counters
	truth *TruthRegistry
}

func (t *tally) observe(res *report.DetectionResult) {
	fabricated, known := t.truth.take(res.ReportID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.Reports++
	switch res.Decision {
	case report.DecisionReal:
		t.c.Real++
		if known {
			if fabricated {
				t.c.FalseNegatives++
			} else {
				t.c.TrueNegatives++
			}
		}
	case report.DecisionFake:
		t.c.Fake++
		if known {
			if fabricated {
				t.c.TruePositives++
			} else {
				t.c.FalsePositives++
			}
		}
	case report.DecisionUncertain:
		t.c.Uncertain++
	}
}

func (t *tally) markDropped() {
	t.mu.Lock()
	t.c.Dropped++
	t.mu.Unlock()
}

func (t *tally) counters() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c
}
