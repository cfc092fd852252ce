// Roadguard - Vehicular Incident Trust and Detection Engine
// Copyright 2026 Roadguard Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/roadguard/roadguard

package evallog

import (
	"context"
	"io"
)

// Service holds a persistent appender open for the lifetime of the data
// layer and closes it when the supervisor shuts the layer down. The
// in-memory appender has no resources to manage and needs no service.
type Service struct {
	store io.Closer
}

// NewService wraps the store for supervision.
func NewService(store io.Closer) *Service {
	return &Service{store: store}
}

// Serve implements suture.Service: it blocks until shutdown, then closes
// the store. Appends racing the close fail with the closed-appender error
// rather than touching released resources.
func (s *Service) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := s.store.Close(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Service) String() string { return "evaluation-log" }
