// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds restart and shutdown policy shared by every layer.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64

	FailureBackoff  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig matches suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is organized into three layers:
//   - maintenance: raw event retention cleanup
//   - dispatch: the aggregation request consumer
//   - api: the HTTP server
//
// A crash in one layer restarts only that layer's services. The dispatch
// layer runs outside the root supervisor so that it outlives the api layer
// on shutdown: pending aggregation requests published while the HTTP server
// drains still find a consumer.
type Tree struct {
	root        *suture.Supervisor
	maintenance *suture.Supervisor
	dispatch    *suture.Supervisor
	api         *suture.Supervisor
	config      TreeConfig
	logger      *slog.Logger
	drain       func(context.Context) error
}

// NewTree builds the tree; zero config fields take defaults.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	// MustHook has a pointer receiver.
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = hook

	t := &Tree{
		root:        suture.New("pulse", rootSpec),
		maintenance: suture.New("maintenance-layer", childSpec),
		dispatch:    suture.New("dispatch-layer", rootSpec),
		api:         suture.New("api-layer", childSpec),
		config:      config,
		logger:      logger,
	}
	t.root.Add(t.maintenance)
	t.root.Add(t.api)
	return t
}

// SetDrain registers fn to run after the api and maintenance layers stop
// and before the dispatch layer stops. fn is bounded by ShutdownTimeout.
func (t *Tree) SetDrain(fn func(context.Context) error) {
	t.drain = fn
}

func (t *Tree) AddMaintenanceService(svc suture.Service) suture.ServiceToken {
	return t.maintenance.Add(svc)
}

func (t *Tree) AddDispatchService(svc suture.Service) suture.ServiceToken {
	return t.dispatch.Add(svc)
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is cancelled and every layer has stopped.
func (t *Tree) Serve(ctx context.Context) error {
	return <-t.ServeBackground(ctx)
}

// ServeBackground runs the tree and reports its exit on the channel.
// Shutdown order: api and maintenance, then the drain hook, then dispatch.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	out := make(chan error, 1)

	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	dispatchErr := t.dispatch.ServeBackground(dispatchCtx)
	frontErr := t.root.ServeBackground(ctx)

	go func() {
		defer stopDispatch()
		err := <-frontErr

		if t.drain != nil {
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.config.ShutdownTimeout)
			if derr := t.drain(drainCtx); derr != nil {
				t.logger.Warn("shutdown drain incomplete", "error", derr)
			}
			cancel()
		}

		stopDispatch()
		derr := <-dispatchErr
		if err == nil || errors.Is(err, context.Canceled) {
			if derr != nil && !errors.Is(derr, context.Canceled) {
				err = derr
			}
		}
		out <- err
	}()
	return out
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	report, err := t.root.UnstoppedServiceReport()
	if err != nil {
		return nil, err
	}
	dispatchReport, err := t.dispatch.UnstoppedServiceReport()
	if err != nil {
		return nil, err
	}
	return append(report, dispatchReport...), nil
}
