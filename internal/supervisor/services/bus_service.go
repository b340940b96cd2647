// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package services

import (
	"context"
	"fmt"
)

// EventBus matches the lifecycle of the engagement event bus.
type EventBus interface {
	Run(ctx context.Context) error
	Close() error
}

// BusService runs the engagement event router under supervision. The
// router blocks inside Run until the context is canceled; Close tears
// down the underlying pub/sub so a restarted router starts clean.
type BusService struct {
	bus  EventBus
	name string
}

// NewBusService creates the wrapper.
func NewBusService(bus EventBus) *BusService {
	return &BusService{bus: bus, name: "event-bus"}
}

// Serve implements suture.Service.
func (s *BusService) Serve(ctx context.Context) error {
	if err := s.bus.Run(ctx); err != nil {
		return fmt.Errorf("event router failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's logging.
func (s *BusService) String() string {
	return s.name
}
