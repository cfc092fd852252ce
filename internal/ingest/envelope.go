// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

// Package ingest carries incident reports from the feed to the roadside
// units over a watermill pub/sub stream, validating and routing on the way.
package ingest

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/roadguard/roadguard/internal/report"
)

// TopicReports is the stream topic incident reports travel on.
const TopicReports = "reports.incident"

// ReportEnvelope is the wire form of one report. The truth label is
// simulation metadata for evaluation: it is registered with the evaluation
// log and stripped before the report enters the detection path.
type ReportEnvelope struct {
	Report report.IncidentReport `json:"report"`

	// Fabricated is the ground-truth label; meaningful only when HasTruth
	// is set.
	Fabricated bool `json:"fabricated,omitempty"`
	HasTruth   bool `json:"has_truth,omitempty"`
}

// Serializer handles envelope encoding for stream messages.
type Serializer struct{}

func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an envelope to JSON bytes, rejecting malformed reports
// before they ever hit the wire.
func (s *Serializer) Marshal(env *ReportEnvelope) ([]byte, error) {
	if err := env.Report.Validate(); err != nil {
		return nil, fmt.Errorf("validate report: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Unmarshal converts JSON bytes back to an envelope. The report is not
// validated here; the receiving handler decides what to do with a malformed
// one.
func (s *Serializer) Unmarshal(data []byte) (*ReportEnvelope, error) {
	var env ReportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}
