// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package main is the entry point for the Roadguard engine.
//
// Roadguard ingests incident reports from vehicles over a message stream,
// routes them to roadside units, and decides per report whether it is
// genuine or fabricated. Accepted reports are forwarded for dispatch;
// fabricated ones feed back into the reporter's trust score and, when
// enough independent sightings exist, a fabrication-origin estimate.
//
// The process assembles four supervised layers:
//
//  1. Data: the persistent evaluation log lifecycle (BadgerDB when a
//     path is configured; the in-memory log needs no supervision).
//  2. Processing: the windowed detection engine.
//  3. Ingest: the watermill report router and the simulation feed.
//  4. Ops: the HTTP surface with health, status and Prometheus metrics.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): ROADGUARD_* environment variables, a config file
// (config.yaml or CONFIG_PATH), and built-in defaults.
//
// The ONNX ensemble classifier requires the onnx build tag:
//
//	go build -tags onnx ./cmd/roadguard
//
// Without it the engine runs on the rule-based path alone and marks
// every decision degraded.
//
// Shutdown is graceful on SIGINT and SIGTERM: the feed and router stop,
// in-flight windows complete, and the evaluation log is flushed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roadguard/roadguard/internal/arbiter"
	"github.com/roadguard/roadguard/internal/classifier"
	"github.com/roadguard/roadguard/internal/config"
	"github.com/roadguard/roadguard/internal/evallog"
	"github.com/roadguard/roadguard/internal/evidence"
	"github.com/roadguard/roadguard/internal/ingest"
	"github.com/roadguard/roadguard/internal/logging"
	"github.com/roadguard/roadguard/internal/ops"
	"github.com/roadguard/roadguard/internal/rsu"
	"github.com/roadguard/roadguard/internal/scorer"
	"github.com/roadguard/roadguard/internal/simfeed"
	"github.com/roadguard/roadguard/internal/supervisor"
	"github.com/roadguard/roadguard/internal/trust"
)

// resultSink is what the pipeline needs from the evaluation log. Both the
// in-memory and the Badger-backed implementations satisfy it.
type resultSink interface {
	rsu.Sink
	ingest.Dropper
	ops.CounterSource
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging)
	logging.Info().Msg("Starting Roadguard with supervisor tree")

	// Ground-truth labels ride in on simulation envelopes and close the
	// loop for the confusion-matrix counters.
	truth := evallog.NewTruthRegistry()

	var sink resultSink
	var evalStore *evallog.Badger
	if cfg.EvalLog.Path != "" {
		store, err := evallog.OpenBadger(evallog.BadgerConfig{
			Path:       cfg.EvalLog.Path,
			SyncWrites: cfg.EvalLog.SyncWrites,
		}, truth)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.EvalLog.Path).Msg("Failed to open evaluation log")
		}
		sink = store
		evalStore = store
		logging.Info().Str("path", cfg.EvalLog.Path).Msg("Evaluation log persisted with BadgerDB")
	} else {
		sink = evallog.NewMemory(truth)
		logging.Info().Msg("Evaluation log held in memory (no path configured)")
	}

	ledger := trust.NewMemoryLedger(cfg.Trust)
	extractor := evidence.NewExtractor(cfg.Evidence)

	sc, err := scorer.New(cfg.Weights)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid signal weights")
	}

	clf := buildClassifier(cfg.Classifier)

	layout := rsu.UniformLayout(cfg.RSU.UnitCount, cfg.RSU.Spacing, cfg.RSU.Radius, cfg.RSU.QueueDepth)
	stream := ingest.NewStream(cfg.Ingest.StreamBuffer, nil)
	defer func() {
		if err := stream.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing report stream")
		}
	}()

	arb, err := arbiter.New(cfg.Arbiter, ledger, clf, ingest.NewForwarder(stream.Publisher()))
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid arbiter configuration")
	}

	// The simulation feed doubles as the mobility provider: it knows every
	// vehicle's true position, which is what beacon-based sightings need.
	// It shares the engine's layout so generated reports address the unit
	// that will actually route them.
	feed := simfeed.New(cfg.Feed, stream, layout)
	engine := rsu.NewEngine(cfg.Engine, layout, ledger, extractor, sc, arb, feed, sink)

	router, err := ingest.NewRouter(cfg.Ingest.Router, stream.Subscriber(), layout, truth, sink, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build ingest router")
	}

	opsServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      ops.NewRouter(sink, ledger, layout).Handler(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if evalStore != nil {
		tree.AddDataService(evallog.NewService(evalStore))
	}
	tree.AddProcessingService(engine)
	tree.AddIngestService(router)
	tree.AddIngestService(feed)
	tree.AddOpsService(ops.NewServerService(opsServer, 10*time.Second))
	logging.Info().
		Str("addr", opsServer.Addr).
		Int("rsus", len(layout.Units())).
		Msg("Services added to supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Roadguard stopped gracefully")
}

// buildClassifier assembles the ONNX ensemble behind its latency and
// circuit-breaker guard, or the rule-only stand-in when disabled or when
// the model cannot be loaded.
func buildClassifier(cfg config.ClassifierConfig) classifier.Classifier {
	if !cfg.Enabled {
		logging.Info().Msg("Classifier disabled, running rule-based path only")
		return classifier.Unavailable()
	}
	ens, err := classifier.NewEnsemble(cfg.Ensemble)
	if err != nil {
		logging.Warn().Err(err).Msg("Classifier unavailable, decisions will be marked degraded")
		return classifier.Unavailable()
	}
	logging.Info().Str("model", cfg.Ensemble.ModelPath).Msg("Classifier ensemble loaded")
	return classifier.NewGuard(ens, cfg.Guard)
}
