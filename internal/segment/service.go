// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package segment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/engagement"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/models"
	"github.com/tomtom215/pulse/internal/validation"
)

// Store persists segment definitions and lists customer profiles.
type Store interface {
	InsertSegment(ctx context.Context, s *models.Segment) error
	UpdateSegment(ctx context.Context, s *models.Segment) error
	DeleteSegment(ctx context.Context, id string) error
	GetSegment(ctx context.Context, id string) (*models.Segment, error)
	ListSegments(ctx context.Context) ([]models.Segment, error)
	ListProfiles(ctx context.Context, from, to time.Time) ([]models.CustomerProfile, error)
}

// Snapshotter computes metrics for every customer with activity.
type Snapshotter interface {
	Snapshot(ctx context.Context, asOf time.Time) (map[string]models.CustomerMetrics, error)
}

// Service manages saved segments and evaluates them against current
// customer metrics.
type Service struct {
	store   Store
	metrics Snapshotter
	cfg     config.SegmentConfig
	now     func() time.Time
}

func NewService(store Store, snap Snapshotter, cfg config.SegmentConfig) *Service {
	if cfg.ScanWorkers < 1 {
		cfg.ScanWorkers = 1
	}
	return &Service{store: store, metrics: snap, cfg: cfg, now: time.Now}
}

func checkSegment(s *models.Segment) error {
	if verr := validation.ValidateStruct(s); verr != nil {
		return verr
	}
	return Validate(s.Definition)
}

// Create validates and stores a new segment.
func (svc *Service) Create(ctx context.Context, s models.Segment) (*models.Segment, error) {
	if err := checkSegment(&s); err != nil {
		return nil, err
	}
	now := svc.now().UTC()
	s.ID = uuid.NewString()
	s.CreatedAt, s.UpdatedAt = now, now

	if err := svc.store.InsertSegment(ctx, &s); err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	logging.Ctx(ctx).Info().Str("segment_id", s.ID).Str("name", s.Name).Msg("Segment created")
	return &s, nil
}

// Update replaces name, description and definition of segment id.
func (svc *Service) Update(ctx context.Context, id string, s models.Segment) (*models.Segment, error) {
	if err := checkSegment(&s); err != nil {
		return nil, err
	}
	existing, err := svc.store.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = s.Name
	existing.Description = s.Description
	existing.Definition = s.Definition
	existing.UpdatedAt = svc.now().UTC()

	if err := svc.store.UpdateSegment(ctx, existing); err != nil {
		return nil, fmt.Errorf("update segment %s: %w", id, err)
	}
	return existing, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.store.DeleteSegment(ctx, id)
}

func (svc *Service) Get(ctx context.Context, id string) (*models.Segment, error) {
	return svc.store.GetSegment(ctx, id)
}

func (svc *Service) List(ctx context.Context) ([]models.Segment, error) {
	return svc.store.ListSegments(ctx)
}

// Preview evaluates def without saving it.
func (svc *Service) Preview(ctx context.Context, def models.SegmentDefinition) (models.SegmentPreview, error) {
	m, err := Compile(def)
	if err != nil {
		return models.SegmentPreview{}, err
	}
	asOf := svc.now().UTC()
	subjects, err := svc.Subjects(ctx, asOf)
	if err != nil {
		return models.SegmentPreview{}, err
	}
	ids, err := Scan(ctx, m, subjects, svc.cfg.ScanWorkers)
	if err != nil {
		return models.SegmentPreview{}, err
	}

	sample := ids
	if svc.cfg.PreviewSampleSize >= 0 && len(sample) > svc.cfg.PreviewSampleSize {
		sample = sample[:svc.cfg.PreviewSampleSize]
	}
	return models.SegmentPreview{
		MatchCount: len(ids),
		Evaluated:  len(subjects),
		Sample:     sample,
		AsOf:       asOf,
	}, nil
}

// Members evaluates a saved segment and returns every matching id.
func (svc *Service) Members(ctx context.Context, id string) ([]string, error) {
	s, err := svc.store.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := Compile(s.Definition)
	if err != nil {
		return nil, err
	}
	subjects, err := svc.Subjects(ctx, svc.now().UTC())
	if err != nil {
		return nil, err
	}
	return Scan(ctx, m, subjects, svc.cfg.ScanWorkers)
}

// Subjects joins every profile with its metrics as of asOf. Profiles without
// activity get the metrics of a new customer.
func (svc *Service) Subjects(ctx context.Context, asOf time.Time) ([]Subject, error) {
	profiles, err := svc.store.ListProfiles(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	snap, err := svc.metrics.Snapshot(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("snapshot metrics: %w", err)
	}

	subjects := make([]Subject, 0, len(profiles))
	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		m, ok := snap[p.CustomerID]
		if !ok {
			m = engagement.Compute(models.UsageWindow{CustomerID: p.CustomerID, AsOf: asOf}, asOf)
		}
		subjects = append(subjects, Subject{Metrics: m, Profile: p})
		seen[p.CustomerID] = true
	}
	var orphans []string
	for id := range snap {
		if !seen[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		subjects = append(subjects, Subject{Metrics: snap[id], Profile: models.CustomerProfile{CustomerID: id}})
	}
	return subjects, nil
}
