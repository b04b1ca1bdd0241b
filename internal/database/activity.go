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

func recordActivity(ctx context.Context, tx *sql.Tx, ev *models.RawEvent) error {
	var commands int64
	if ev.Type == models.EventCommand {
		commands = 1
	}
	day := ev.Day()
	ts := ev.Timestamp.UTC()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO customer_daily_activity (customer_id, activity_date, command_count, event_count, last_event_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (customer_id, activity_date) DO UPDATE SET
			command_count = command_count + EXCLUDED.command_count,
			event_count = event_count + 1,
			last_event_at = GREATEST(last_event_at, EXCLUDED.last_event_at)`,
		ev.CustomerID, day, commands, ts,
	); err != nil {
		return fmt.Errorf("failed to update daily activity for %s: %w", ev.CustomerID, err)
	}

	if ev.MachineID != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO customer_daily_machines (customer_id, activity_date, machine_id)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING`,
			ev.CustomerID, day, ev.MachineID,
		); err != nil {
			return fmt.Errorf("failed to record machine for %s: %w", ev.CustomerID, err)
		}
	}

	return ensureProfile(ctx, tx, ev.CustomerID, ts, ev.Properties.Country)
}

// usageWindowSQL aggregates daily counters into usage windows ending with
// the as-of day D. Offsets run back from the end of D, so the last 3 days are
// activity dates D-2..D, the previous 7 are D-9..D-3 and the 30 day window is
// D-29..D. In date arithmetic that is (D-3, D], (D-10, D-3] and (D-30, D].
func usageWindowSQL(actWhere, machWhere string) string {
	return fmt.Sprintf(`
		WITH act AS (
			SELECT customer_id,
			       COALESCE(SUM(command_count) FILTER (WHERE activity_date > ?), 0) AS c3,
			       COALESCE(SUM(command_count) FILTER (WHERE activity_date > ? AND activity_date <= ?), 0) AS c7prev,
			       COUNT(*) FILTER (WHERE activity_date > ?) AS active_days,
			       COALESCE(SUM(command_count), 0) AS total_commands,
			       MAX(last_event_at) AS last_active
			FROM customer_daily_activity
			%s
			GROUP BY customer_id
		),
		mach AS (
			SELECT customer_id, COUNT(DISTINCT machine_id) AS machines
			FROM customer_daily_machines
			%s
			GROUP BY customer_id
		)
		SELECT act.customer_id, act.c3, act.c7prev, act.active_days,
		       COALESCE(mach.machines, 0), act.total_commands, act.last_active
		FROM act LEFT JOIN mach ON act.customer_id = mach.customer_id
		ORDER BY act.customer_id`, actWhere, machWhere)
}

func (db *DB) usageWindows(ctx context.Context, customerID string, asOf time.Time) ([]models.UsageWindow, error) {
	day := models.TruncateDay(asOf)
	d3 := day.AddDate(0, 0, -3)
	d10 := day.AddDate(0, 0, -10)
	d30 := day.AddDate(0, 0, -30)

	actWhere, actArgs := query.NewWhereBuilder().
		AddClause("activity_date <= ?", day).
		AddEquals("customer_id", customerID).
		BuildWithPrefix()
	machWhere, machArgs := query.NewWhereBuilder().
		AddClause("activity_date > ?", d30).
		AddClause("activity_date <= ?", day).
		AddEquals("customer_id", customerID).
		BuildWithPrefix()

	args := []interface{}{d3, d10, d3, d30}
	args = append(args, actArgs...)
	args = append(args, machArgs...)

	return queryAndScan(ctx, db.conn, usageWindowSQL(actWhere, machWhere), args,
		func(rows *sql.Rows) (models.UsageWindow, error) {
			w := models.UsageWindow{AsOf: asOf, HasActivity: true}
			var (
				activeDays, machines int64
				lastActive           sql.NullTime
			)
			if err := rows.Scan(&w.CustomerID, &w.CommandsLast3d, &w.CommandsPrev7d,
				&activeDays, &machines, &w.TotalCommands, &lastActive); err != nil {
				return w, err
			}
			w.ActiveDays30d = int(activeDays)
			w.MachineCount = int(machines)
			if lastActive.Valid {
				w.LastActive = lastActive.Time.UTC()
			}
			return w, nil
		})
}

// UsageWindow returns the rolling usage window of one customer as of asOf.
// A customer without any activity up to asOf yields HasActivity=false.
func (db *DB) UsageWindow(ctx context.Context, customerID string, asOf time.Time) (models.UsageWindow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	windows, err := db.usageWindows(ctx, customerID, asOf)
	if err := observe("select", "customer_daily_activity", start, err); err != nil {
		return models.UsageWindow{}, err
	}
	if len(windows) == 0 {
		return models.UsageWindow{CustomerID: customerID, AsOf: asOf}, nil
	}
	return windows[0], nil
}

// UsageWindows returns the usage window of every customer with activity on or
// before asOf, ordered by customer id.
func (db *DB) UsageWindows(ctx context.Context, asOf time.Time) ([]models.UsageWindow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	windows, err := db.usageWindows(ctx, "", asOf)
	if err := observe("select_all", "customer_daily_activity", start, err); err != nil {
		return nil, err
	}
	return windows, nil
}

// ActivityDays lists (customer, day) pairs with recorded activity between
// from and to inclusive.
func (db *DB) ActivityDays(ctx context.Context, from, to time.Time) ([]models.ActivityDay, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := query.NewWhereBuilder().
		AddDateRange("activity_date", models.TruncateDay(from), models.TruncateDay(to)).
		BuildWithPrefix()

	start := time.Now()
	days, err := queryAndScan(ctx, db.conn,
		`SELECT customer_id, activity_date FROM customer_daily_activity `+where+` ORDER BY customer_id, activity_date`,
		args,
		func(rows *sql.Rows) (models.ActivityDay, error) {
			var d models.ActivityDay
			err := rows.Scan(&d.CustomerID, &d.Date)
			d.Date = d.Date.UTC()
			return d, err
		})
	if err := observe("select", "customer_daily_activity", start, err); err != nil {
		return nil, err
	}
	return days, nil
}
