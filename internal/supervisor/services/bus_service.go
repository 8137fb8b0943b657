// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Closer is a component released when its service stops. Satisfied by
// *events.Bus.
type Closer interface {
	Close() error
}

// EventBusService ties the event bus lifetime to the supervision tree. The
// bus is closed once the tree shuts down, which ends every subscription.
type EventBusService struct {
	bus    Closer
	logger zerolog.Logger
	name   string
}

// NewEventBusService wraps bus.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEventBusService(bus Closer, logger zerolog.Logger) *EventBusService {
	return &EventBusService{
		bus:    bus,
		logger: logger.With().Str("service", "event-bus").Logger(),
		name:   "event-bus",
	}
}

// Serve blocks until ctx is canceled, then closes the bus.
func (s *EventBusService) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := s.bus.Close(); err != nil {
		return fmt.Errorf("close event bus: %w", err)
	}
	s.logger.Debug().Msg("Event bus closed")
	return ctx.Err()
}

// String implements fmt.Stringer for suture logs.
func (s *EventBusService) String() string {
	return s.name
}
