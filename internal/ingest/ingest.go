// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package ingest validates telemetry batches, records them idempotently and
// hands the touched days to the aggregation dispatcher.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/database"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/metrics"
	"github.com/tomtom215/pulse/internal/models"
	"github.com/tomtom215/pulse/internal/validation"
)

var (
	ErrEmptyBatch    = errors.New("batch contains no events")
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

// Store persists a batch of events and their derived counters.
type Store interface {
	WriteBatch(ctx context.Context, events []models.RawEvent, sessionTimeout time.Duration) (database.BatchOutcome, error)
}

// Dispatcher schedules aggregation of a day. Dispatch must not block on the
// aggregation itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, day time.Time)
}

// RequestMeta carries transport details used for enrichment.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

type Ingestor struct {
	store      Store
	dispatcher Dispatcher
	enricher   *Enricher
	cfg        config.IngestConfig
	now        func() time.Time
}

// New creates an Ingestor. enricher and dispatcher may be nil.
func New(store Store, dispatcher Dispatcher, enricher *Enricher, cfg config.IngestConfig) *Ingestor {
	return &Ingestor{
		store:      store,
		dispatcher: dispatcher,
		enricher:   enricher,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Ingest records every well-formed event of batch and skips malformed ones.
// The whole batch is rejected only when it is empty or too large. Store
// failures are returned unchanged so callers can test database.IsRetryable.
func (i *Ingestor) Ingest(ctx context.Context, batch []models.EventInput, meta RequestMeta) (models.IngestResult, error) {
	var result models.IngestResult

	if len(batch) == 0 {
		return result, ErrEmptyBatch
	}
	if i.cfg.MaxBatchSize > 0 && len(batch) > i.cfg.MaxBatchSize {
		return result, fmt.Errorf("%w: %d events, limit %d", ErrBatchTooLarge, len(batch), i.cfg.MaxBatchSize)
	}

	logger := logging.Ctx(ctx)
	now := i.now().UTC()
	rc := i.enricher.resolve(meta)

	events := make([]models.RawEvent, 0, len(batch))
	for idx := range batch {
		ev, err := i.parse(&batch[idx], now)
		if err != nil {
			result.Skipped++
			logger.Debug().Err(err).Int("index", idx).Msg("Skipping malformed event")
			continue
		}
		rc.apply(&ev)
		events = append(events, ev)
	}

	if len(events) == 0 {
		metrics.RecordIngest(0, result.Skipped, 0)
		return result, nil
	}

	// Session upserts depend on arrival order within the batch.
	sort.SliceStable(events, func(a, b int) bool {
		return events[a].Timestamp.Before(events[b].Timestamp)
	})

	outcome, err := i.store.WriteBatch(ctx, events, i.cfg.SessionTimeout)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to record batch: %w", err)
	}
	result.Accepted = outcome.Inserted
	result.Duplicates = outcome.Duplicates

	if i.dispatcher != nil {
		for _, day := range outcome.Dates {
			i.dispatcher.Dispatch(ctx, day)
		}
	}

	metrics.RecordIngest(result.Accepted, result.Skipped, result.Duplicates)
	logger.Debug().
		Int("accepted", result.Accepted).
		Int("skipped", result.Skipped).
		Int("duplicates", result.Duplicates).
		Msg("Batch ingested")
	return result, nil
}

func (i *Ingestor) parse(in *models.EventInput, now time.Time) (models.RawEvent, error) {
	in.Normalize()
	if verr := validation.ValidateStruct(in); verr != nil {
		return models.RawEvent{}, verr
	}

	ts, err := time.Parse(time.RFC3339Nano, in.Timestamp)
	if err != nil {
		return models.RawEvent{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	ts = ts.UTC()
	if i.cfg.MaxFutureSkew > 0 && ts.After(now.Add(i.cfg.MaxFutureSkew)) {
		return models.RawEvent{}, fmt.Errorf("timestamp %s is too far in the future", in.Timestamp)
	}

	eventType := models.EventType(in.Type)
	props, err := models.ParseProperties(eventType, in.Properties)
	if err != nil {
		return models.RawEvent{}, err
	}

	ev := models.RawEvent{
		ID:         in.ID,
		Type:       eventType,
		Name:       in.Name,
		Properties: props,
		Timestamp:  ts,
		SessionID:  in.SessionID,
		CustomerID: in.CustomerID,
		MachineID:  in.MachineID,
		DurationMs: in.DurationMs,
		Version:    in.Version,
		Platform:   in.Platform,
	}
	if ev.ID == "" {
		ev.ID = EventID(&ev)
	}
	return ev, nil
}

// EventID derives a stable id from the identifying fields of an event so
// client retries without ids still deduplicate.
func EventID(ev *models.RawEvent) string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		ev.SessionID,
		string(ev.Type),
		ev.Name,
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ev.CustomerID,
	}, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
