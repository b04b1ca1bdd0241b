// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

/*
schema.go - Database Schema Management

Tables:
  - raw_events: short-lived telemetry, purged after the raw retention window
  - session_summaries: one row per session_id, maintained by atomic upserts
  - customer_daily_activity: per-customer per-day command and event counters
  - customer_daily_machines: distinct machine ids seen per customer per day
  - customer_profiles: tier, plan, country, signup and free-form attributes
  - daily_aggregates: durable (date, dimension, value, metric) rollups
  - segments: saved segment definitions as JSON text

Upserted columns carry no secondary indexes; DuckDB rewrites indexed rows on
update, which conflicts with ON CONFLICT DO UPDATE in a single statement.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	for _, query := range indexCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS raw_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			name TEXT NOT NULL,
			properties TEXT NOT NULL DEFAULT '{}',
			event_ts TIMESTAMP NOT NULL,
			event_date DATE NOT NULL,
			session_id TEXT NOT NULL,
			customer_id TEXT,
			machine_id TEXT,
			duration_ms BIGINT,
			version TEXT,
			platform TEXT,
			received_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS session_summaries (
			session_id TEXT PRIMARY KEY,
			customer_id TEXT,
			machine_id TEXT,
			started_at TIMESTAMP NOT NULL,
			last_seen_at TIMESTAMP NOT NULL,
			page_count BIGINT NOT NULL DEFAULT 0,
			event_count BIGINT NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS customer_daily_activity (
			customer_id TEXT NOT NULL,
			activity_date DATE NOT NULL,
			command_count BIGINT NOT NULL DEFAULT 0,
			event_count BIGINT NOT NULL DEFAULT 0,
			last_event_at TIMESTAMP NOT NULL,
			PRIMARY KEY (customer_id, activity_date)
		)`,

		`CREATE TABLE IF NOT EXISTS customer_daily_machines (
			customer_id TEXT NOT NULL,
			activity_date DATE NOT NULL,
			machine_id TEXT NOT NULL,
			PRIMARY KEY (customer_id, activity_date, machine_id)
		)`,

		`CREATE TABLE IF NOT EXISTS customer_profiles (
			customer_id TEXT PRIMARY KEY,
			tier TEXT NOT NULL DEFAULT 'free',
			plan TEXT NOT NULL DEFAULT 'none',
			country TEXT,
			signup_at TIMESTAMP NOT NULL,
			first_seen_at TIMESTAMP NOT NULL,
			attributes TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS daily_aggregates (
			agg_date DATE NOT NULL,
			dimension TEXT NOT NULL,
			dimension_value TEXT NOT NULL,
			metric TEXT NOT NULL,
			value DOUBLE NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (agg_date, dimension, dimension_value, metric)
		)`,

		`CREATE TABLE IF NOT EXISTS segments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			definition TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
}

func indexCreationQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_raw_events_date ON raw_events(event_date)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_events_ts ON raw_events(event_ts)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_events_customer ON raw_events(customer_id)`,
	}
}
