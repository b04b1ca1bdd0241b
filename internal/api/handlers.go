// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"context"
	"time"

	"github.com/tomtom215/pulse/internal/ingest"
	"github.com/tomtom215/pulse/internal/models"
)

// EventIngestor records telemetry batches.
type EventIngestor interface {
	Ingest(ctx context.Context, batch []models.EventInput, meta ingest.RequestMeta) (models.IngestResult, error)
}

// Aggregator answers dashboard queries and runs maintenance jobs.
type Aggregator interface {
	AggregateDay(ctx context.Context, day time.Time) (models.AggregationSummary, error)
	Cleanup(ctx context.Context, now time.Time) (int64, error)
	Query(ctx context.Context, q models.AggregateQuery) ([]models.Series, error)
}

// MetricsEngine derives per-customer metrics.
type MetricsEngine interface {
	Metrics(ctx context.Context, customerID string, asOf time.Time) (models.CustomerMetrics, error)
}

// CohortEngine builds retention tables.
type CohortEngine interface {
	Retention(ctx context.Context, from, to time.Time) (models.CohortTable, error)
	Invalidate() error
}

// SegmentService manages and evaluates segments.
type SegmentService interface {
	Create(ctx context.Context, s models.Segment) (*models.Segment, error)
	Update(ctx context.Context, id string, s models.Segment) (*models.Segment, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Segment, error)
	List(ctx context.Context) ([]models.Segment, error)
	Preview(ctx context.Context, def models.SegmentDefinition) (models.SegmentPreview, error)
	Members(ctx context.Context, id string) ([]string, error)
}

// ProfileStore reads and edits customer profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, customerID string) (*models.CustomerProfile, error)
	UpdateProfile(ctx context.Context, customerID string, upd models.ProfileUpdate) (*models.CustomerProfile, error)
}

// Pinger reports store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups the services a Handler serves. Every field except
// Cache is required; Cache is set only for a shared metrics cache.
type Dependencies struct {
	Ingestor   EventIngestor
	Aggregator Aggregator
	Metrics    MetricsEngine
	Cohorts    CohortEngine
	Segments   SegmentService
	Profiles   ProfileStore
	Store      Pinger
	Cache      Pinger
}

// Handler serves the HTTP API. Handler methods are split by area:
//   - handlers_events.go: ingest
//   - handlers_aggregates.go: dashboard series and admin jobs
//   - handlers_customers.go: metrics and profiles
//   - handlers_cohorts.go: retention tables
//   - handlers_segments.go: segment CRUD and evaluation
//   - handlers_health.go: liveness and readiness
type Handler struct {
	deps      Dependencies
	startTime time.Time
	now       func() time.Time
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, startTime: time.Now(), now: time.Now}
}
