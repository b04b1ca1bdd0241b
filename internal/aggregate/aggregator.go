// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package aggregate rolls raw events into durable daily aggregates and
// enforces the raw event retention window.
//
// Aggregation is a full recompute per day: the day's raw events are reduced
// in memory and the resulting rows replace whatever was stored for that day.
// Re-running a day, or running it concurrently, converges to the same rows.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/metrics"
	"github.com/tomtom215/pulse/internal/models"
)

// ErrOutsideRetention is returned for days whose raw events may already have
// been purged. Recomputing them would erase durable aggregates.
var ErrOutsideRetention = errors.New("day is outside the raw event retention window")

// Store is the persistence the aggregator needs.
type Store interface {
	EventsForDay(ctx context.Context, day time.Time) ([]models.RawEvent, error)
	ReplaceDayAggregates(ctx context.Context, day time.Time, rows []models.DailyAggregate) (int64, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	QueryAggregates(ctx context.Context, q models.AggregateQuery) ([]models.DailyAggregate, error)
}

type Aggregator struct {
	store Store
	cfg   config.AggregationConfig
	now   func() time.Time
}

func New(store Store, cfg config.AggregationConfig) *Aggregator {
	return &Aggregator{store: store, cfg: cfg, now: time.Now}
}

// AggregateDay recomputes every aggregate row of day from its raw events.
func (a *Aggregator) AggregateDay(ctx context.Context, day time.Time) (models.AggregationSummary, error) {
	start := time.Now()
	day = models.TruncateDay(day)
	summary := models.AggregationSummary{Date: day}

	if day.Before(a.retentionCutoff()) {
		return summary, fmt.Errorf("aggregate %s: %w", day.Format("2006-01-02"), ErrOutsideRetention)
	}

	events, err := a.store.EventsForDay(ctx, day)
	if err != nil {
		metrics.RecordAggregation(time.Since(start), err)
		return summary, fmt.Errorf("failed to load events for %s: %w", day.Format("2006-01-02"), err)
	}

	rows := Reduce(day, events)
	removed, err := a.store.ReplaceDayAggregates(ctx, day, rows)
	if err != nil {
		metrics.RecordAggregation(time.Since(start), err)
		return summary, fmt.Errorf("failed to write aggregates for %s: %w", day.Format("2006-01-02"), err)
	}

	summary.Events = len(events)
	summary.RowsWritten = len(rows)
	summary.RowsRemoved = removed
	summary.DurationMs = time.Since(start).Milliseconds()
	metrics.RecordAggregation(time.Since(start), nil)

	logging.Ctx(ctx).Debug().
		Str("date", day.Format("2006-01-02")).
		Int("events", summary.Events).
		Int("rows", summary.RowsWritten).
		Int64("removed", removed).
		Msg("Day aggregated")
	return summary, nil
}

// ProgressFunc is called after each day of a backfill.
type ProgressFunc func(day time.Time, summary models.AggregationSummary, err error)

// Backfill aggregates every day from..to inclusive, throttled to
// cfg.BackfillRate days per second. Days outside the retention window are
// reported through progress and skipped. It returns the number of days
// aggregated.
func (a *Aggregator) Backfill(ctx context.Context, from, to time.Time, progress ProgressFunc) (int, error) {
	from, to = models.TruncateDay(from), models.TruncateDay(to)
	if to.Before(from) {
		return 0, fmt.Errorf("backfill range is inverted: %s > %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	limit := rate.Inf
	if a.cfg.BackfillRate > 0 {
		limit = rate.Limit(a.cfg.BackfillRate)
	}
	limiter := rate.NewLimiter(limit, 1)

	done := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := limiter.Wait(ctx); err != nil {
			return done, err
		}
		summary, err := a.AggregateDay(ctx, day)
		if progress != nil {
			progress(day, summary, err)
		}
		switch {
		case errors.Is(err, ErrOutsideRetention):
			continue
		case err != nil:
			return done, err
		}
		done++
	}
	return done, nil
}

// Cleanup deletes raw events older than the retention window relative to
// now. Aggregates are never touched. Running it twice deletes nothing new.
func (a *Aggregator) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.UTC().Add(-a.cfg.RawRetention)
	deleted, err := a.store.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	metrics.CleanupDeleted.Add(float64(deleted))
	logging.Ctx(ctx).Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Raw event cleanup finished")
	return deleted, nil
}

// retentionCutoff is the earliest day start whose raw events are all kept.
func (a *Aggregator) retentionCutoff() time.Time {
	if a.cfg.RawRetention <= 0 {
		return time.Time{}
	}
	return a.now().UTC().Add(-a.cfg.RawRetention)
}

// Query returns one series per (dimension, dimension value, metric) over the
// requested range. Totals sum count metrics and average timing metrics.
func (a *Aggregator) Query(ctx context.Context, q models.AggregateQuery) ([]models.Series, error) {
	rows, err := a.store.QueryAggregates(ctx, q)
	if err != nil {
		return nil, err
	}

	var (
		series []models.Series
		cur    *models.Series
	)
	for _, r := range rows {
		if cur == nil || cur.Dimension != r.Dimension || cur.DimensionValue != r.DimensionValue || cur.Metric != r.Metric {
			series = append(series, models.Series{Dimension: r.Dimension, DimensionValue: r.DimensionValue, Metric: r.Metric})
			cur = &series[len(series)-1]
		}
		cur.Points = append(cur.Points, models.SeriesPoint{Date: r.Date, Value: r.Value})
		cur.Total += r.Value
	}

	for i := range series {
		s := &series[i]
		if s.Metric == models.MetricAvgMs || s.Metric == models.MetricP95Ms {
			s.Total = round2(s.Total / float64(len(s.Points)))
		}
	}
	return series, nil
}
