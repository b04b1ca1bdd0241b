// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/database"
	"github.com/tomtom215/pulse/internal/models"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func msPtr(v float64) *float64 { return &v }

func sampleEvents() []models.RawEvent {
	return []models.RawEvent{
		{ID: "1", Type: models.EventPageview, Name: "home", SessionID: "a", Timestamp: day.Add(time.Hour),
			Properties: models.EventProperties{Path: "/", Referrer: "https://www.Example.com/post", UTMSource: "news", UTMMedium: "email", Country: "DE"}},
		{ID: "2", Type: models.EventPageview, Name: "home", SessionID: "b", Timestamp: day.Add(2 * time.Hour),
			Properties: models.EventProperties{Path: "/", Referrer: "https://example.com", Country: "DE"}},
		{ID: "3", Type: models.EventPageview, Name: "home", SessionID: "a", Timestamp: day.Add(3 * time.Hour),
			Properties: models.EventProperties{Path: "/"}},
		{ID: "4", Type: models.EventInteraction, Name: "click", SessionID: "a", Timestamp: day.Add(4 * time.Hour),
			Properties: models.EventProperties{Target: "cta"}},
		{ID: "5", Type: models.EventPerformance, Name: "lcp", SessionID: "a", Timestamp: day.Add(5 * time.Hour),
			Properties: models.EventProperties{Path: "/docs", ValueMs: msPtr(100)}},
		{ID: "6", Type: models.EventPerformance, Name: "lcp", SessionID: "b", Timestamp: day.Add(6 * time.Hour),
			Properties: models.EventProperties{Path: "/docs", ValueMs: msPtr(300)}},
		{ID: "7", Type: models.EventCommand, Name: "build", SessionID: "c", Timestamp: day.Add(7 * time.Hour)},
	}
}

func valueOf(rows []models.DailyAggregate, dim models.Dimension, value, metric string) (float64, bool) {
	for _, r := range rows {
		if r.Dimension == dim && r.DimensionValue == value && r.Metric == metric {
			return r.Value, true
		}
	}
	return 0, false
}

func TestReduce_Dimensions(t *testing.T) {
	rows := Reduce(day, sampleEvents())

	tests := []struct {
		dim    models.Dimension
		value  string
		metric string
		want   float64
	}{
		{models.DimEventName, "pageview:home", models.MetricCount, 3},
		{models.DimEventName, "pageview:home", models.MetricUniqueSessions, 2},
		{models.DimEventName, "command:build", models.MetricCount, 1},
		{models.DimReferrer, "example.com", models.MetricCount, 2},
		{models.DimUTM, "news|email|", models.MetricCount, 1},
		{models.DimGeography, "DE", models.MetricCount, 2},
		{models.DimInteractionTarget, "cta", models.MetricCount, 1},
		{models.DimPerformancePath, "/docs", models.MetricCount, 2},
		{models.DimPerformancePath, "/docs", models.MetricAvgMs, 200},
		{models.DimPerformancePath, "/docs", models.MetricP95Ms, 300},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s/%s", tt.dim, tt.value, tt.metric), func(t *testing.T) {
			got, ok := valueOf(rows, tt.dim, tt.value, tt.metric)
			if !ok {
				t.Fatal("row missing")
			}
			if got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := valueOf(rows, models.DimEventName, "pageview:home", models.MetricAvgMs); ok {
		t.Error("timing metrics only apply to performance paths")
	}
}

func TestReduce_OrderIndependentAndIgnoresOtherDays(t *testing.T) {
	events := sampleEvents()
	reversed := make([]models.RawEvent, len(events))
	for i, ev := range events {
		reversed[len(events)-1-i] = ev
	}
	reversed = append(reversed, models.RawEvent{
		ID: "x", Type: models.EventCommand, Name: "build", SessionID: "z", Timestamp: day.AddDate(0, 0, 1),
	})

	if !reflect.DeepEqual(Reduce(day, events), Reduce(day, reversed)) {
		t.Error("Reduce must not depend on event order or include other days")
	}
}

func TestPercentile(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	if got := percentile(values, 0.95); got != 95 {
		t.Errorf("p95 of 1..100 = %v, want 95", got)
	}
	if got := percentile([]float64{42}, 0.95); got != 42 {
		t.Errorf("p95 of single value = %v", got)
	}
}

// Store-backed tests.

var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 1})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestAggregator(store Store, now time.Time) *Aggregator {
	a := New(store, config.AggregationConfig{RawRetention: 7 * 24 * time.Hour})
	a.now = func() time.Time { return now }
	return a
}

func TestAggregateDay_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	if _, err := db.WriteBatch(ctx, sampleEvents(), 30*time.Minute); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	a := newTestAggregator(db, day.Add(12*time.Hour))
	q := models.AggregateQuery{From: day, To: day}

	var snapshots [][]models.DailyAggregate
	for i := 0; i < 3; i++ {
		summary, err := a.AggregateDay(ctx, day)
		if err != nil {
			t.Fatalf("AggregateDay run %d: %v", i, err)
		}
		if summary.Events != 7 {
			t.Errorf("Events = %d, want 7", summary.Events)
		}
		rows, err := db.QueryAggregates(ctx, q)
		if err != nil {
			t.Fatalf("QueryAggregates: %v", err)
		}
		snapshots = append(snapshots, rows)
	}

	for i := 1; i < len(snapshots); i++ {
		if !reflect.DeepEqual(snapshots[0], snapshots[i]) {
			t.Fatalf("run %d produced different rows", i)
		}
	}
	if len(snapshots[0]) != len(Reduce(day, sampleEvents())) {
		t.Errorf("stored %d rows, want %d", len(snapshots[0]), len(Reduce(day, sampleEvents())))
	}
}

func TestAggregateDay_OutsideRetention(t *testing.T) {
	db := setupTestDB(t)
	a := newTestAggregator(db, day.AddDate(0, 0, 30))

	_, err := a.AggregateDay(context.Background(), day)
	if !errors.Is(err, ErrOutsideRetention) {
		t.Errorf("err = %v, want ErrOutsideRetention", err)
	}
}

func TestBackfill(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	if _, err := db.WriteBatch(ctx, sampleEvents(), 30*time.Minute); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	// Retention starts on day-3, so day-5 and day-4 are skipped.
	a := newTestAggregator(db, day.Add(-3*24*time.Hour+7*24*time.Hour))
	var reported []time.Time
	done, err := a.Backfill(ctx, day.AddDate(0, 0, -5), day, func(d time.Time, _ models.AggregationSummary, _ error) {
		reported = append(reported, d)
	})
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if len(reported) != 6 {
		t.Errorf("progress calls = %d, want 6", len(reported))
	}
	if done != 4 {
		t.Errorf("done = %d, want 4", done)
	}

	if _, err := a.Backfill(ctx, day, day.AddDate(0, 0, -1), nil); err == nil {
		t.Error("inverted range should fail")
	}
}

func TestCleanup_LeavesAggregates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	if _, err := db.WriteBatch(ctx, sampleEvents(), 30*time.Minute); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	a := newTestAggregator(db, day.Add(12*time.Hour))
	if _, err := a.AggregateDay(ctx, day); err != nil {
		t.Fatalf("AggregateDay: %v", err)
	}

	later := day.AddDate(0, 0, 8)
	for i, want := range []int64{7, 0} {
		deleted, err := a.Cleanup(ctx, later)
		if err != nil {
			t.Fatalf("Cleanup run %d: %v", i, err)
		}
		if deleted != want {
			t.Errorf("run %d deleted = %d, want %d", i, deleted, want)
		}
	}

	series, err := a.Query(ctx, models.AggregateQuery{From: day, To: day, Dimension: models.DimEventName, Metric: models.MetricCount})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(series) == 0 {
		t.Fatal("aggregates must survive cleanup")
	}
}

func TestQuery_Series(t *testing.T) {
	store := &staticStore{rows: []models.DailyAggregate{
		{Date: day, Dimension: models.DimPerformancePath, DimensionValue: "/docs", Metric: models.MetricAvgMs, Value: 100},
		{Date: day.AddDate(0, 0, 1), Dimension: models.DimPerformancePath, DimensionValue: "/docs", Metric: models.MetricAvgMs, Value: 300},
		{Date: day, Dimension: models.DimPerformancePath, DimensionValue: "/docs", Metric: models.MetricCount, Value: 2},
		{Date: day.AddDate(0, 0, 1), Dimension: models.DimPerformancePath, DimensionValue: "/docs", Metric: models.MetricCount, Value: 5},
	}}
	a := New(store, config.AggregationConfig{})

	series, err := a.Query(context.Background(), models.AggregateQuery{From: day, To: day.AddDate(0, 0, 1)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series = %d, want 2", len(series))
	}
	if series[0].Total != 200 {
		t.Errorf("avg_ms total = %v, want mean 200", series[0].Total)
	}
	if series[1].Total != 7 || len(series[1].Points) != 2 {
		t.Errorf("count series = %+v", series[1])
	}
}

type staticStore struct {
	rows []models.DailyAggregate
}

func (s *staticStore) EventsForDay(context.Context, time.Time) ([]models.RawEvent, error) {
	return nil, nil
}

func (s *staticStore) ReplaceDayAggregates(context.Context, time.Time, []models.DailyAggregate) (int64, error) {
	return 0, nil
}

func (s *staticStore) DeleteEventsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *staticStore) QueryAggregates(context.Context, models.AggregateQuery) ([]models.DailyAggregate, error) {
	return s.rows, nil
}
