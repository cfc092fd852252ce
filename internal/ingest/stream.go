// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package ingest

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Stream is the in-process report transport: a gochannel pub/sub shared by
// the feed publisher and the ingest router.
type Stream struct {
	pubsub     *gochannel.GoChannel
	serializer *Serializer
}

// NewStream creates the transport. buffer bounds the output channel; zero
// means unbuffered.
func NewStream(buffer int, logger watermill.LoggerAdapter) *Stream {
	if logger == nil {
		logger = NewLoggerAdapter()
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(buffer),
	}, logger)
	return &Stream{pubsub: pubsub, serializer: NewSerializer()}
}

// Publish sends one envelope onto the report topic.
func (s *Stream) Publish(env *ReportEnvelope) error {
	data, err := s.serializer.Marshal(env)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := s.pubsub.Publish(TopicReports, msg); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

// Subscriber exposes the consuming side for the router.
func (s *Stream) Subscriber() message.Subscriber {
	return s.pubsub
}

// Publisher exposes the raw publishing side for topics other than
// TopicReports, such as dispatch forwarding.
func (s *Stream) Publisher() message.Publisher {
	return s.pubsub
}

// Close shuts the transport down; pending subscribers are released.
func (s *Stream) Close() error {
	return s.pubsub.Close()
}
