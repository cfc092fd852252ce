// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/roadguard/roadguard/internal/evallog"
	"github.com/roadguard/roadguard/internal/logging"
	"github.com/roadguard/roadguard/internal/metrics"
	"github.com/roadguard/roadguard/internal/rsu"
)

// Dropper counts reports rejected before reaching the engine.
type Dropper interface {
	MarkDropped()
}

// RouterConfig tunes the ingest router.
type RouterConfig struct {
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// DefaultRouterConfig returns the published router defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{CloseTimeout: 30 * time.Second}
}

// Router consumes report envelopes from the stream, validates them, strips
// the truth label, and enqueues the report at its roadside unit. Malformed,
// unroutable, and overflowing reports are dropped and counted; they are
// acked either way since redelivery cannot fix them.
type Router struct {
	router     *message.Router
	serializer *Serializer
	layout     *rsu.Layout
	truth      *evallog.TruthRegistry
	dropper    Dropper
}

// NewRouter wires the ingest handler. truth and dropper may be nil.
func NewRouter(cfg RouterConfig, sub message.Subscriber, layout *rsu.Layout, truth *evallog.TruthRegistry, dropper Dropper, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultRouterConfig().CloseTimeout
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create ingest router: %w", err)
	}
	wmRouter.AddMiddleware(middleware.Recoverer)

	r := &Router{
		router:     wmRouter,
		serializer: NewSerializer(),
		layout:     layout,
		truth:      truth,
		dropper:    dropper,
	}
	wmRouter.AddConsumerHandler("report_ingest", TopicReports, sub, r.handle)
	return r, nil
}

// handle processes one stream message. It always returns nil: a report that
// cannot be accepted now will not become acceptable on redelivery.
func (r *Router) handle(msg *message.Message) error {
	env, err := r.serializer.Unmarshal(msg.Payload)
	if err != nil {
		r.drop("malformed", "", err)
		return nil
	}

	rep := env.Report
	if err := rep.Validate(); err != nil {
		r.drop("malformed", rep.ReportID, err)
		return nil
	}

	if env.HasTruth {
		r.truth.Register(rep.ReportID, env.Fabricated)
	}

	unit, ok := r.layout.Route(&rep)
	if !ok {
		metrics.ReportsDropped.WithLabelValues("unroutable").Inc()
		r.drop("", rep.ReportID, errors.New("no unit covers the reporter"))
		return nil
	}
	if err := unit.Enqueue(&rep); err != nil {
		// Overflow is already counted by the unit.
		r.drop("", rep.ReportID, err)
		return nil
	}
	return nil
}

// drop logs and counts a rejected report. cause is empty when the metric
// was already incremented elsewhere.
func (r *Router) drop(cause, reportID string, err error) {
	if cause != "" {
		metrics.ReportsDropped.WithLabelValues(cause).Inc()
	}
	if r.dropper != nil {
		r.dropper.MarkDropped()
	}
	logging.Warn().Err(err).Str("report", reportID).Msg("report dropped at ingest")
}

// Run starts the router and blocks until the context is canceled. It
// satisfies suture.Service.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Serve satisfies suture.Service.
func (r *Router) Serve(ctx context.Context) error {
	return r.Run(ctx)
}

// Running returns a channel that closes once the router is consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight
// messages.
func (r *Router) Close() error {
	return r.router.Close()
}
