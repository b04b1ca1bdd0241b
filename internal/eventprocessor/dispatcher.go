// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package eventprocessor carries aggregation requests from the ingest path to
// the aggregator over Watermill, in-process by default or over NATS
// JetStream.
package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/metrics"
	"github.com/tomtom215/pulse/internal/models"
)

// AggregationRequest asks for one UTC day to be recomputed.
type AggregationRequest struct {
	Date        string    `json:"date"` // YYYY-MM-DD
	RequestedAt time.Time `json:"requested_at"`
}

func (r AggregationRequest) Day() (time.Time, error) {
	return time.Parse("2006-01-02", r.Date)
}

// Dispatcher publishes aggregation requests without blocking the caller.
type Dispatcher struct {
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[interface{}]

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher wraps publisher; breaker may be nil.
func NewDispatcher(publisher message.Publisher, topic string, breaker *gobreaker.CircuitBreaker[interface{}]) *Dispatcher {
	return &Dispatcher{publisher: publisher, topic: topic, breaker: breaker}
}

// Dispatch schedules aggregation of day and returns immediately. Publish
// failures are logged and counted; the next ingest touching the same day or
// a backfill repairs a missed run.
func (d *Dispatcher) Dispatch(ctx context.Context, day time.Time) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		logging.Ctx(ctx).Warn().Str("date", day.Format("2006-01-02")).Msg("Dispatcher closed, aggregation request dropped")
		metrics.RecordDispatch(fmt.Errorf("dispatcher closed"))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	correlationID := logging.CorrelationIDFromContext(ctx)
	go func() {
		defer d.wg.Done()
		err := d.Publish(day, correlationID)
		metrics.RecordDispatch(err)
		if err != nil {
			logging.Error().Err(err).
				Str("date", day.Format("2006-01-02")).
				Str("correlation_id", correlationID).
				Msg("Failed to dispatch aggregation request")
		}
	}()
}

// Publish sends one request synchronously through the circuit breaker.
func (d *Dispatcher) Publish(day time.Time, correlationID string) error {
	payload, err := json.Marshal(AggregationRequest{
		Date:        models.TruncateDay(day).Format("2006-01-02"),
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode aggregation request: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if correlationID != "" {
		msg.Metadata.Set("correlation_id", correlationID)
	}

	if d.breaker == nil {
		return d.publisher.Publish(d.topic, msg)
	}
	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.publisher.Publish(d.topic, msg)
	})
	return err
}

// Close stops accepting requests and waits for in-flight publishes, bounded
// by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
