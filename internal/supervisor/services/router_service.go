// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package services

import (
	"context"
	"fmt"
)

// MessageRouter is satisfied by *eventprocessor.Router.
type MessageRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterService runs the aggregation consumer. Cancelling ctx makes Run
// return after in-flight messages drain; Close covers a Run that is still
// blocked on subscription setup.
type RouterService struct {
	router MessageRouter
}

func NewRouterService(router MessageRouter) *RouterService {
	return &RouterService{router: router}
}

func (s *RouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if ctx.Err() != nil {
		if cerr := s.router.Close(); cerr != nil {
			return fmt.Errorf("close aggregation router: %w", cerr)
		}
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("aggregation router stopped: %w", err)
	}
	return fmt.Errorf("aggregation router stopped unexpectedly")
}

func (s *RouterService) String() string {
	return "aggregation-router"
}
