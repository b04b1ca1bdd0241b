// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/pulse/internal/cache"
	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/metrics"
	"github.com/tomtom215/pulse/internal/models"
)

// WindowStore reads rolling usage windows.
type WindowStore interface {
	UsageWindow(ctx context.Context, customerID string, asOf time.Time) (models.UsageWindow, error)
	UsageWindows(ctx context.Context, asOf time.Time) ([]models.UsageWindow, error)
}

// Engine serves customer metrics, caching each (customer, day) result.
type Engine struct {
	store WindowStore
	cache cache.Store
	cfg   config.EngagementConfig
	now   func() time.Time
}

// New returns an Engine. A nil cache disables caching.
func New(store WindowStore, c cache.Store, cfg config.EngagementConfig) *Engine {
	if cfg.SnapshotWorkers < 1 {
		cfg.SnapshotWorkers = 1
	}
	return &Engine{store: store, cache: c, cfg: cfg, now: time.Now}
}

type cacheKeyParams struct {
	CustomerID string `json:"customer_id"`
	Day        string `json:"day"`
}

func metricsKey(customerID string, asOf time.Time) string {
	return cache.GenerateKey("metrics", cacheKeyParams{
		CustomerID: customerID,
		Day:        models.TruncateDay(asOf).Format("2006-01-02"),
	})
}

// Metrics returns the metrics of customerID as of asOf. A zero asOf means
// now. Store failures are returned unchanged so retryable errors stay
// retryable.
func (e *Engine) Metrics(ctx context.Context, customerID string, asOf time.Time) (models.CustomerMetrics, error) {
	if asOf.IsZero() {
		asOf = e.now().UTC()
	}
	key := metricsKey(customerID, asOf)

	if m, ok := e.cached(ctx, key); ok {
		return m, nil
	}

	w, err := e.store.UsageWindow(ctx, customerID, asOf)
	if err != nil {
		return models.CustomerMetrics{}, fmt.Errorf("load usage window for %s: %w", customerID, err)
	}
	w.CustomerID = customerID
	m := Compute(w, asOf)
	e.remember(ctx, key, m)
	return m, nil
}

// Snapshot computes metrics for every customer with activity up to asOf,
// keyed by customer id, and warms the cache with them.
func (e *Engine) Snapshot(ctx context.Context, asOf time.Time) (map[string]models.CustomerMetrics, error) {
	if asOf.IsZero() {
		asOf = e.now().UTC()
	}
	windows, err := e.store.UsageWindows(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("load usage windows: %w", err)
	}

	out := make(map[string]models.CustomerMetrics, len(windows))
	for _, w := range windows {
		out[w.CustomerID] = Compute(w, asOf)
	}

	if e.cache != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.SnapshotWorkers)
		for id, m := range out {
			key, m := metricsKey(id, asOf), m
			g.Go(func() error {
				e.remember(gctx, key, m)
				return nil
			})
		}
		_ = g.Wait()
	}

	logging.Ctx(ctx).Debug().
		Int("customers", len(out)).
		Str("as_of", asOf.Format(time.RFC3339)).
		Msg("Computed metrics snapshot")
	return out, nil
}

func (e *Engine) cached(ctx context.Context, key string) (models.CustomerMetrics, bool) {
	var m models.CustomerMetrics
	if e.cache == nil {
		return m, false
	}
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Metrics cache read failed")
	}
	if !ok || err != nil {
		metrics.RecordCacheLookup("metrics", false)
		return m, false
	}
	if err := json.Unmarshal(data, &m); err != nil {
		metrics.RecordCacheLookup("metrics", false)
		return m, false
	}
	metrics.RecordCacheLookup("metrics", true)
	return m, true
}

// remember writes m to the cache. Cache failures never fail the request.
func (e *Engine) remember(ctx context.Context, key string, m models.CustomerMetrics) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cfg.CacheTTL); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Metrics cache write failed")
	}
}
