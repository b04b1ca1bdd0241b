// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package main is the entry point for the Pulse server.
//
// The server initializes components in the following order:
//
//  1. Configuration (Koanf: defaults, config.yaml, environment)
//  2. DuckDB store
//  3. Optional GeoIP database for ingest enrichment
//  4. Metrics cache (memory or Redis) and cohort cache (Badger)
//  5. Aggregation dispatch (in-process channel or NATS JetStream)
//  6. Engines: ingest, aggregate, engagement, cohort, segment
//  7. HTTP API
//
// Long-lived services run under a suture tree. SIGINT and SIGTERM cancel
// the tree: the HTTP server drains, pending dispatches are flushed while the
// aggregation router still consumes them, then the router finishes in-flight
// messages before the stores close.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/pulse/internal/aggregate"
	"github.com/tomtom215/pulse/internal/api"
	"github.com/tomtom215/pulse/internal/cache"
	"github.com/tomtom215/pulse/internal/cohort"
	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/database"
	"github.com/tomtom215/pulse/internal/engagement"
	"github.com/tomtom215/pulse/internal/eventprocessor"
	"github.com/tomtom215/pulse/internal/ingest"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/segment"
	"github.com/tomtom215/pulse/internal/supervisor"
	"github.com/tomtom215/pulse/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Pulse exited with error")
	}
}

//nolint:gocyclo // sequential wiring
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("dispatch", cfg.Dispatch.Transport).
		Str("cache", cfg.Cache.Backend).
		Msg("Starting Pulse")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Err(err).Msg("Error closing database")
		}
	}()

	var geo ingest.GeoResolver
	if cfg.GeoIP.DatabasePath != "" {
		resolver, err := ingest.OpenGeoIP(cfg.GeoIP.DatabasePath)
		if err != nil {
			logging.Warn().Err(err).Msg("GeoIP disabled")
		} else {
			defer resolver.Close()
			geo = resolver
		}
	}

	metricsCache, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return fmt.Errorf("open metrics cache: %w", err)
	}
	defer metricsCache.Close()

	cohortKV, err := cohort.OpenCache(cfg.Cohort.CachePath)
	if err != nil {
		return fmt.Errorf("open cohort cache: %w", err)
	}
	defer func() {
		if err := cohortKV.Close(); err != nil {
			logging.Err(err).Msg("Error closing cohort cache")
		}
	}()

	wmLogger := logging.NewWatermillAdapter()
	pubsub, err := eventprocessor.NewPubSub(cfg.Dispatch, wmLogger)
	if err != nil {
		return fmt.Errorf("create dispatch transport: %w", err)
	}
	defer pubsub.Close()

	breaker := eventprocessor.NewCircuitBreaker("aggregation-dispatch", cfg.Dispatch.BreakerThreshold, cfg.Dispatch.BreakerTimeout)
	dispatcher := eventprocessor.NewDispatcher(pubsub.Publisher, cfg.Dispatch.Topic, breaker)

	aggregator := aggregate.New(db, cfg.Aggregation)
	router, err := eventprocessor.NewRouter(cfg.Dispatch, pubsub, aggregator, wmLogger)
	if err != nil {
		return fmt.Errorf("create aggregation router: %w", err)
	}

	ingestor := ingest.New(db, dispatcher, ingest.NewEnricher(geo), cfg.Ingest)
	metricsEngine := engagement.New(db, metricsCache, cfg.Engagement)
	cohorts := cohort.New(db, cohortKV, cfg.Cohort)
	segments := segment.NewService(db, metricsEngine, cfg.Segment)

	deps := api.Dependencies{
		Ingestor:   ingestor,
		Aggregator: aggregator,
		Metrics:    metricsEngine,
		Cohorts:    cohorts,
		Segments:   segments,
		Profiles:   db,
		Store:      db,
	}
	if pinger, ok := metricsCache.(api.Pinger); ok {
		deps.Cache = pinger
	}
	handler := api.NewHandler(deps)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, api.MiddlewareConfigFrom(cfg)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMaintenanceService(services.NewCleanupService(aggregator, cfg.Aggregation.CleanupInterval))
	tree.AddDispatchService(services.NewRouterService(router))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.SetDrain(func(ctx context.Context) error {
		flushCtx, cancel := context.WithTimeout(ctx, cfg.Dispatch.CloseTimeout)
		defer cancel()
		if err := dispatcher.Close(flushCtx); err != nil {
			return fmt.Errorf("flush pending aggregation requests: %w", err)
		}
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Err(serveErr).Msg("Supervisor tree stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Pulse stopped")
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}
