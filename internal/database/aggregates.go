// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/pulse/internal/database/query"
	"github.com/tomtom215/pulse/internal/models"
)

// ReplaceDayAggregates makes rows the complete aggregate set for day.
//
// Every row is written with a recompute upsert (value = EXCLUDED.value), then
// rows of that day not touched by this run are deleted, all in one
// transaction. Running it again with the same rows leaves the table
// unchanged, and concurrent runs over identical input converge.
func (db *DB) ReplaceDayAggregates(ctx context.Context, day time.Time, rows []models.DailyAggregate) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	day = models.TruncateDay(day)
	runTs := time.Now().UTC()
	start := time.Now()
	var removed int64

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_aggregates (agg_date, dimension, dimension_value, metric, value, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (agg_date, dimension, dimension_value, metric) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare aggregate upsert: %w", err)
		}
		defer closeQuietly(stmt)

		for _, row := range rows {
			if !models.TruncateDay(row.Date).Equal(day) {
				return fmt.Errorf("aggregate %s does not belong to %s", row.Key(), day.Format("2006-01-02"))
			}
			if _, err := stmt.ExecContext(ctx, day, string(row.Dimension), row.DimensionValue,
				row.Metric, row.Value, runTs); err != nil {
				return fmt.Errorf("failed to upsert aggregate %s: %w", row.Key(), err)
			}
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM daily_aggregates WHERE agg_date = ? AND updated_at < ?`, day, runTs)
		if err != nil {
			return fmt.Errorf("failed to remove stale aggregates: %w", err)
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err := observe("replace", "daily_aggregates", start, err); err != nil {
		return 0, err
	}
	return removed, nil
}

// QueryAggregates returns aggregate rows in the query range ordered by
// dimension, value, metric and date.
func (db *DB) QueryAggregates(ctx context.Context, q models.AggregateQuery) ([]models.DailyAggregate, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := query.NewWhereBuilder().
		AddDateRange("agg_date", models.TruncateDay(q.From), models.TruncateDay(q.To)).
		AddEquals("dimension", string(q.Dimension)).
		AddEquals("metric", q.Metric).
		BuildWithPrefix()

	start := time.Now()
	rows, err := queryAndScan(ctx, db.conn, `
		SELECT agg_date, dimension, dimension_value, metric, value
		FROM daily_aggregates `+where+`
		ORDER BY dimension, dimension_value, metric, agg_date`,
		args,
		func(rows *sql.Rows) (models.DailyAggregate, error) {
			var (
				a   models.DailyAggregate
				dim string
			)
			err := rows.Scan(&a.Date, &dim, &a.DimensionValue, &a.Metric, &a.Value)
			a.Date = a.Date.UTC()
			a.Dimension = models.Dimension(dim)
			return a, err
		})
	if err := observe("select", "daily_aggregates", start, err); err != nil {
		return nil, err
	}
	return rows, nil
}
