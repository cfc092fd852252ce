// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package ingest

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/roadguard/roadguard/internal/report"
)

// TopicDispatch carries accepted reports onward to response consumers.
const TopicDispatch = "reports.dispatch"

// DispatchEnvelope is the payload forwarded for every accepted report.
// Urgency is the acceptance confidence in [0,1]; responders use it to
// prioritize between concurrent incidents.
type DispatchEnvelope struct {
	Report  *report.IncidentReport `json:"report"`
	Urgency float64                `json:"urgency"`
}

// Forwarder publishes accepted reports to the dispatch topic.
type Forwarder struct {
	pub message.Publisher
}

// NewForwarder wraps a publisher, typically the shared Stream's pub/sub.
func NewForwarder(pub message.Publisher) *Forwarder {
	return &Forwarder{pub: pub}
}

// Dispatch publishes one accepted report. The context is accepted for
// interface compatibility; the gochannel publisher does not block on it.
func (f *Forwarder) Dispatch(_ context.Context, r *report.IncidentReport, urgency float64) error {
	data, err := json.Marshal(&DispatchEnvelope{Report: r, Urgency: urgency})
	if err != nil {
		return fmt.Errorf("marshal dispatch envelope: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := f.pub.Publish(TopicDispatch, msg); err != nil {
		return fmt.Errorf("publish dispatch: %w", err)
	}
	return nil
}
