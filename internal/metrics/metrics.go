// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package metrics defines the Prometheus instrumentation for the detection
// pipeline: report throughput, decisions, queue pressure, classifier health,
// and ledger size. Collectors are registered via promauto and exposed on the
// ops endpoint by cmd/roadguard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportsReceived counts reports accepted into an RSU queue, by unit.
	ReportsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadguard_reports_received_total",
			Help: "Total incident reports accepted into RSU queues",
		},
		[]string{"rsu"},
	)

	// ReportsDropped counts reports rejected before scoring, by cause
	// ("malformed", "overflow", "unroutable").
	ReportsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadguard_reports_dropped_total",
			Help: "Total reports rejected before reaching the scorer",
		},
		[]string{"cause"},
	)

	// Decisions counts arbiter verdicts by outcome (REAL, FAKE, UNCERTAIN).
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadguard_decisions_total",
			Help: "Total arbiter decisions by outcome",
		},
		[]string{"decision"},
	)

	// DegradedDecisions counts decisions taken on the rule-only path.
	DegradedDecisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roadguard_degraded_decisions_total",
			Help: "Total decisions taken without a classifier prediction",
		},
	)

	// ProcessingDuration tracks per-report processing latency.
	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roadguard_report_processing_seconds",
			Help:    "Duration of single-report processing",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs .. ~1.6s
		},
	)

	// WindowDuration tracks full processing-window latency.
	WindowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roadguard_window_processing_seconds",
			Help:    "Duration of a full processing window across all RSUs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QueueDepth reports the pending-report queue depth per RSU.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roadguard_rsu_queue_depth",
			Help: "Pending reports queued at each roadside unit",
		},
		[]string{"rsu"},
	)

	// ClassifierLatency tracks ensemble prediction latency.
	ClassifierLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roadguard_classifier_latency_seconds",
			Help:    "Latency of ensemble classifier predictions",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms .. ~0.5s
		},
	)

	// ClassifierFailures counts predictions that ended unavailable
	// (timeout, open breaker, model failure).
	ClassifierFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roadguard_classifier_failures_total",
			Help: "Total classifier calls that fell back to the rule-only path",
		},
	)

	// LedgerSize reports the number of vehicles tracked by the trust ledger.
	LedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roadguard_trust_ledger_vehicles",
			Help: "Vehicles currently tracked by the trust ledger",
		},
	)

	// Localizations counts fabricator position estimates attached to FAKE
	// results.
	Localizations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roadguard_localizations_total",
			Help: "Total fabricator localization estimates produced",
		},
	)

	// DispatchesForwarded counts REAL reports forwarded to emergency
	// dispatch.
	DispatchesForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roadguard_dispatches_forwarded_total",
			Help: "Total accepted reports forwarded to emergency dispatch",
		},
	)
)
