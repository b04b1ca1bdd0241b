// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Command backfill recomputes daily aggregates over a date range and then
// warms the customer metrics cache.
//
//	backfill -from 2026-03-01 -to 2026-03-07
//
// Days whose raw events are past retention are reported and skipped.
// Aggregation is throttled to AGGREGATION_BACKFILL_RATE days per second.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/tomtom215/pulse/internal/aggregate"
	"github.com/tomtom215/pulse/internal/cache"
	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/database"
	"github.com/tomtom215/pulse/internal/engagement"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/models"
)

func main() {
	fromFlag := flag.String("from", "", "first day to aggregate (YYYY-MM-DD)")
	toFlag := flag.String("to", "", "last day to aggregate, inclusive (YYYY-MM-DD); defaults to today")
	skipSnapshot := flag.Bool("skip-snapshot", false, "do not warm the customer metrics cache")
	flag.Parse()

	if err := run(*fromFlag, *toFlag, *skipSnapshot); err != nil {
		fmt.Fprintln(os.Stderr, "backfill:", err)
		os.Exit(1)
	}
}

func parseRange(fromRaw, toRaw string, now time.Time) (time.Time, time.Time, error) {
	if fromRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("-from is required")
	}
	from, err := time.Parse("2006-01-02", fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
	}
	to := models.TruncateDay(now)
	if toRaw != "" {
		if to, err = time.Parse("2006-01-02", toRaw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to %s is before -from %s", toRaw, fromRaw)
	}
	return from, to, nil
}

func run(fromRaw, toRaw string, skipSnapshot bool) error {
	from, to, err := parseRange(fromRaw, toRaw, time.Now())
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logging.Init(logCfg)

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	days := int(to.Sub(from).Hours()/24) + 1
	bar := progressbar.Default(int64(days), "aggregating")

	skipped := 0
	agg := aggregate.New(db, cfg.Aggregation)
	done, err := agg.Backfill(ctx, from, to, func(day time.Time, summary models.AggregationSummary, err error) {
		_ = bar.Add(1)
		if err != nil {
			skipped++
			logging.Debug().Err(err).Str("date", day.Format("2006-01-02")).Msg("Day not aggregated")
		}
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("backfill stopped after %d days: %w", done, err)
	}
	fmt.Printf("aggregated %d days, skipped %d outside retention\n", done, skipped)

	if skipSnapshot {
		return nil
	}
	metricsCache, err := cache.NewStore(cfg.Cache)
	if err != nil {
		return fmt.Errorf("open metrics cache: %w", err)
	}
	defer metricsCache.Close()

	snapshot, err := engagement.New(db, metricsCache, cfg.Engagement).Snapshot(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("warm metrics cache: %w", err)
	}
	fmt.Printf("computed metrics for %d customers\n", len(snapshot))
	return nil
}
