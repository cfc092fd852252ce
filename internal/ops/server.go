// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package ops exposes the operational HTTP surface: liveness, readiness,
// Prometheus metrics and a small JSON status API. The detection pipeline
// itself has no HTTP ingress; reports arrive over the message stream.
package ops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roadguard/roadguard/internal/evallog"
	"github.com/roadguard/roadguard/internal/logging"
	"github.com/roadguard/roadguard/internal/rsu"
	"github.com/roadguard/roadguard/internal/trust"
)

// CounterSource exposes running detection counters.
type CounterSource interface {
	Counters() evallog.Counters
}

// Router serves the operational endpoints.
type Router struct {
	counters CounterSource
	ledger   trust.Ledger
	layout   *rsu.Layout
	started  time.Time
}

// NewRouter builds the ops router. Any dependency may be nil; the
// corresponding fields are simply omitted from the status payload.
func NewRouter(counters CounterSource, ledger trust.Ledger, layout *rsu.Layout) *Router {
	return &Router{
		counters: counters,
		ledger:   ledger,
		layout:   layout,
		started:  time.Now(),
	}
}

// Handler assembles the chi route tree.
func (ro *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", ro.healthz)
	r.Get("/readyz", ro.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", ro.status)
		r.Get("/rsus", ro.rsus)
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

func (ro *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (ro *Router) readyz(w http.ResponseWriter, _ *http.Request) {
	// The process is ready once the router is serving; there is no
	// external dependency to probe before accepting traffic.
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
}

type statusResponse struct {
	UptimeSeconds float64           `json:"uptime_seconds"`
	LedgerSize    int               `json:"ledger_size,omitempty"`
	Counters      *evallog.Counters `json:"counters,omitempty"`
}

func (ro *Router) status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{UptimeSeconds: time.Since(ro.started).Seconds()}
	if sized, ok := ro.ledger.(interface{ Size() int }); ok {
		resp.LedgerSize = sized.Size()
	}
	if ro.counters != nil {
		c := ro.counters.Counters()
		resp.Counters = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

type rsuStatus struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Radius  float64 `json:"radius"`
	Pending int     `json:"pending"`
}

func (ro *Router) rsus(w http.ResponseWriter, _ *http.Request) {
	var out []rsuStatus
	if ro.layout != nil {
		for _, u := range ro.layout.Units() {
			out = append(out, rsuStatus{
				ID:      u.ID,
				X:       u.Center.X,
				Y:       u.Center.Y,
				Radius:  u.Radius,
				Pending: u.Pending(),
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("Failed to encode ops response")
	}
}
