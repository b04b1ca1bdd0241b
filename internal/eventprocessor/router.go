// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/pulse/internal/aggregate"
	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/models"
)

// DayAggregator recomputes one day.
type DayAggregator interface {
	AggregateDay(ctx context.Context, day time.Time) (models.AggregationSummary, error)
}

// Router consumes aggregation requests. Failed handlers are retried with
// exponential backoff; requests that still fail go to the poison topic.
type Router struct {
	router *message.Router
	topic  string
}

// NewRouter builds a router with the aggregation handler attached.
func NewRouter(cfg config.DispatchConfig, ps *PubSub, agg DayAggregator, logger watermill.LoggerAdapter) (*Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	poisonQueue, err := middleware.PoisonQueue(ps.Publisher, PoisonTopic(cfg.Topic))
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}

	// Outermost first: poison queue sees the error only after retries give up,
	// and panics inside the handler become retryable errors.
	wmRouter.AddMiddleware(
		poisonQueue,
		middleware.Retry{
			MaxRetries:      cfg.RetryMaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     time.Minute,
			Multiplier:      2.0,
			Logger:          logger,
		}.Middleware,
		middleware.Recoverer,
	)

	wmRouter.AddConsumerHandler("aggregate_day", cfg.Topic, ps.Subscriber, AggregationHandler(agg))

	return &Router{router: wmRouter, topic: cfg.Topic}, nil
}

// PoisonTopic names the topic receiving requests that exhausted retries.
func PoisonTopic(topic string) string {
	return topic + ".poison"
}

// AggregationHandler decodes a request and aggregates its day. Malformed
// requests and days outside raw retention are acknowledged and dropped.
func AggregationHandler(agg DayAggregator) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx := msg.Context()
		if id := msg.Metadata.Get("correlation_id"); id != "" {
			ctx = logging.ContextWithCorrelationID(ctx, id)
		}
		logger := logging.Ctx(ctx)

		var req AggregationRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed aggregation request")
			return nil
		}
		day, err := req.Day()
		if err != nil {
			logger.Warn().Err(err).Str("date", req.Date).Msg("Dropping aggregation request with invalid date")
			return nil
		}

		if _, err := agg.AggregateDay(ctx, day); err != nil {
			if errors.Is(err, aggregate.ErrOutsideRetention) {
				logger.Info().Str("date", req.Date).Msg("Skipping aggregation outside retention window")
				return nil
			}
			return err
		}
		return nil
	}
}

// Run blocks until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once handlers are subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close drains in-flight messages up to the configured CloseTimeout.
func (r *Router) Close() error {
	return r.router.Close()
}
