// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package config loads the layered runtime configuration: built-in defaults,
// an optional YAML file, then ROADGUARD_ environment variables, in rising
// precedence.
package config

import (
	"fmt"
	"time"

	"github.com/roadguard/roadguard/internal/arbiter"
	"github.com/roadguard/roadguard/internal/classifier"
	"github.com/roadguard/roadguard/internal/evidence"
	"github.com/roadguard/roadguard/internal/ingest"
	"github.com/roadguard/roadguard/internal/logging"
	"github.com/roadguard/roadguard/internal/rsu"
	"github.com/roadguard/roadguard/internal/scorer"
	"github.com/roadguard/roadguard/internal/simfeed"
	"github.com/roadguard/roadguard/internal/trust"
)

// Config is the full runtime configuration.
type Config struct {
	Logging    logging.Config   `koanf:"logging"`
	Server     ServerConfig     `koanf:"server"`
	Trust      trust.Config     `koanf:"trust"`
	Evidence   evidence.Config  `koanf:"evidence"`
	Weights    scorer.Weights   `koanf:"weights"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Arbiter    arbiter.Config   `koanf:"arbiter"`
	Engine     rsu.EngineConfig `koanf:"engine"`
	RSU        RSUConfig        `koanf:"rsu"`
	EvalLog    EvalLogConfig    `koanf:"evallog"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Feed       simfeed.Config   `koanf:"feed"`
}

// ServerConfig is the ops HTTP endpoint (health and metrics).
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// ClassifierConfig bundles the ensemble and its guard.
type ClassifierConfig struct {
	Enabled  bool                      `koanf:"enabled"`
	Ensemble classifier.EnsembleConfig `koanf:"ensemble"`
	Guard    classifier.GuardConfig    `koanf:"guard"`
}

// RSUConfig shapes the roadside layout: how many units, how far apart,
// how wide their coverage, and how deep their pending queues.
type RSUConfig struct {
	UnitCount  int     `koanf:"unit_count"`
	Spacing    float64 `koanf:"spacing"`
	Radius     float64 `koanf:"radius"`
	QueueDepth int     `koanf:"queue_depth"`
}

// EvalLogConfig selects the evaluation log backend. An empty path keeps the
// log in memory.
type EvalLogConfig struct {
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// IngestConfig shapes the report stream.
type IngestConfig struct {
	StreamBuffer int                 `koanf:"stream_buffer"`
	Router       ingest.RouterConfig `koanf:"router"`
}

// defaultConfig returns every subsystem's published defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8350,
			Timeout: 30 * time.Second,
		},
		Trust:    trust.DefaultConfig(),
		Evidence: evidence.DefaultConfig(),
		Weights:  scorer.DefaultWeights(),
		Classifier: ClassifierConfig{
			Enabled: true,
			Ensemble: classifier.EnsembleConfig{
				InputName:  "features",
				OutputName: "probability_fake",
			},
			Guard: classifier.DefaultGuardConfig(),
		},
		Arbiter: arbiter.DefaultConfig(),
		Engine:  rsu.DefaultEngineConfig(),
		RSU: RSUConfig{
			UnitCount:  rsu.DefaultUnitCount,
			Spacing:    rsu.DefaultSpacing,
			Radius:     rsu.DefaultRadius,
			QueueDepth: rsu.DefaultQueueDepth,
		},
		EvalLog: EvalLogConfig{
			Path: "",
		},
		Ingest: IngestConfig{
			StreamBuffer: 1024,
			Router:       ingest.DefaultRouterConfig(),
		},
		Feed: simfeed.DefaultConfig(),
	}
}

// Validate rejects configurations the engine cannot run with. Subsystem
// validators carry the detailed rules; this adds the cross-cutting bounds.
func (c *Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if err := c.Arbiter.Validate(); err != nil {
		return fmt.Errorf("arbiter: %w", err)
	}
	if c.RSU.QueueDepth <= 0 {
		return fmt.Errorf("rsu.queue_depth must be positive, got %d", c.RSU.QueueDepth)
	}
	if c.RSU.UnitCount <= 0 {
		return fmt.Errorf("rsu.unit_count must be positive, got %d", c.RSU.UnitCount)
	}
	if c.RSU.Spacing <= 0 || c.RSU.Radius <= 0 {
		return fmt.Errorf("rsu.spacing and rsu.radius must be positive, got %v and %v", c.RSU.Spacing, c.RSU.Radius)
	}
	if c.Engine.WindowLength <= 0 {
		return fmt.Errorf("engine.window_length must be positive, got %v", c.Engine.WindowLength)
	}
	if c.Classifier.Guard.LatencyBudget <= 0 {
		return fmt.Errorf("classifier.guard.latency_budget must be positive, got %v", c.Classifier.Guard.LatencyBudget)
	}
	if c.Trust.LearnLimit <= 0 || c.Trust.LearnLimit > 1 {
		return fmt.Errorf("trust.learn_limit %v outside (0,1]", c.Trust.LearnLimit)
	}
	if c.Trust.DecayFraction <= 0 || c.Trust.DecayFraction > 1 {
		return fmt.Errorf("trust.decay_fraction %v outside (0,1]", c.Trust.DecayFraction)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d outside [1,65535]", c.Server.Port)
	}
	return nil
}
