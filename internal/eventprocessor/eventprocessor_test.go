// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pulse/internal/aggregate"
	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/models"
)

type recordingAggregator struct {
	mu   sync.Mutex
	days []time.Time
	err  error
	hit  chan time.Time
}

func (r *recordingAggregator) AggregateDay(_ context.Context, day time.Time) (models.AggregationSummary, error) {
	r.mu.Lock()
	r.days = append(r.days, day)
	r.mu.Unlock()
	if r.hit != nil {
		r.hit <- day
	}
	return models.AggregationSummary{Date: day}, r.err
}

func testDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		Transport:            TransportMemory,
		Topic:                "aggregation.requests",
		CloseTimeout:         5 * time.Second,
		RetryMaxRetries:      1,
		RetryInitialInterval: time.Millisecond,
	}
}

func TestDispatcher_RoundTrip(t *testing.T) {
	cfg := testDispatchConfig()
	logger := logging.NewWatermillAdapter()

	ps, err := NewPubSub(cfg, logger)
	if err != nil {
		t.Fatalf("NewPubSub: %v", err)
	}
	defer ps.Close()

	agg := &recordingAggregator{hit: make(chan time.Time, 1)}
	router, err := NewRouter(cfg, ps, agg, logger)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	defer router.Close()

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	d := NewDispatcher(ps.Publisher, cfg.Topic, NewCircuitBreaker("test", 3, time.Second))
	day := time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)
	d.Dispatch(context.Background(), day)

	select {
	case got := <-agg.hit:
		if !got.Equal(models.TruncateDay(day)) {
			t.Errorf("aggregated %v, want %v", got, models.TruncateDay(day))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("aggregation request was not delivered")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
	defer closeCancel()
	if err := d.Close(closeCtx); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestDispatcher_CloseWaitsForAggregation(t *testing.T) {
	cfg := testDispatchConfig()
	logger := logging.NewWatermillAdapter()

	ps, err := NewPubSub(cfg, logger)
	if err != nil {
		t.Fatalf("NewPubSub: %v", err)
	}
	defer ps.Close()

	agg := &recordingAggregator{}
	router, err := NewRouter(cfg, ps, agg, logger)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	defer router.Close()

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	d := NewDispatcher(ps.Publisher, cfg.Topic, nil)
	days := []time.Time{
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	}
	for _, day := range days {
		d.Dispatch(context.Background(), day)
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := d.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	agg.mu.Lock()
	defer agg.mu.Unlock()
	if len(agg.days) != len(days) {
		t.Errorf("aggregated %d days before Close returned, want %d", len(agg.days), len(days))
	}
}

func TestAggregationHandler(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		aggErr  error
		wantErr bool
		wantRun bool
	}{
		{name: "valid", payload: `{"date":"2026-03-10"}`, wantRun: true},
		{name: "malformed json dropped", payload: `{`, wantRun: false},
		{name: "bad date dropped", payload: `{"date":"10/03/2026"}`, wantRun: false},
		{name: "outside retention acked", payload: `{"date":"2026-03-10"}`,
			aggErr: fmt.Errorf("x: %w", aggregate.ErrOutsideRetention), wantRun: true},
		{name: "store failure retried", payload: `{"date":"2026-03-10"}`,
			aggErr: errors.New("connection reset"), wantErr: true, wantRun: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := &recordingAggregator{err: tt.aggErr}
			err := AggregationHandler(agg)(message.NewMessage("id", []byte(tt.payload)))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (len(agg.days) > 0) != tt.wantRun {
				t.Errorf("aggregator ran = %v, want %v", len(agg.days) > 0, tt.wantRun)
			}
		})
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("nats unavailable") }
func (failingPublisher) Close() error { return nil }

func TestDispatcher_BreakerOpens(t *testing.T) {
	d := NewDispatcher(failingPublisher{}, "t", NewCircuitBreaker("test", 2, time.Minute))
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if err := d.Publish(day, ""); err == nil {
			t.Fatal("expected publish failure")
		}
	}
	if err := d.Publish(day, ""); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want open breaker", err)
	}
}

func TestNewPubSub_UnknownTransport(t *testing.T) {
	cfg := testDispatchConfig()
	cfg.Transport = "carrier-pigeon"
	if _, err := NewPubSub(cfg, logging.NewWatermillAdapter()); err == nil {
		t.Error("expected error for unknown transport")
	}
}
