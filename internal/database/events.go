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

	"github.com/goccy/go-json"

	"github.com/tomtom215/pulse/internal/models"
)

// BatchOutcome reports what a WriteBatch call changed.
type BatchOutcome struct {
	Inserted   int
	Duplicates int
	// Dates holds the distinct UTC days of newly inserted events, ascending.
	Dates []time.Time
}

// WriteBatch stores events and applies their side effects in one transaction.
//
// Each event is inserted with ON CONFLICT (id) DO NOTHING. Only events that
// were actually inserted touch session summaries, daily activity counters
// and customer profiles, so replaying a batch after a failure never double
// counts. Events should be ordered by timestamp.
func (db *DB) WriteBatch(ctx context.Context, events []models.RawEvent, sessionTimeout time.Duration) (BatchOutcome, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var out BatchOutcome
	seen := make(map[time.Time]bool)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		out = BatchOutcome{}
		for i := range events {
			ev := &events[i]
			inserted, err := insertRawEvent(ctx, tx, ev)
			if err != nil {
				return err
			}
			if !inserted {
				out.Duplicates++
				continue
			}
			out.Inserted++
			seen[ev.Day()] = true

			if ev.Type.TouchesSession() {
				if err := upsertSession(ctx, tx, ev, sessionTimeout); err != nil {
					return err
				}
			}
			if ev.CustomerID != "" {
				if err := recordActivity(ctx, tx, ev); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err := observe("write_batch", "raw_events", start, err); err != nil {
		return BatchOutcome{}, err
	}

	out.Dates = sortedDays(seen)
	return out, nil
}

func insertRawEvent(ctx context.Context, tx *sql.Tx, ev *models.RawEvent) (bool, error) {
	props, err := json.Marshal(ev.Properties)
	if err != nil {
		return false, fmt.Errorf("failed to encode properties for %s: %w", ev.ID, err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO raw_events (
			id, event_type, name, properties, event_ts, event_date,
			session_id, customer_id, machine_id, duration_ms, version, platform
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Type), ev.Name, string(props), ev.Timestamp.UTC(), ev.Day(),
		ev.SessionID, nullString(ev.CustomerID), nullString(ev.MachineID),
		nullInt64(ev.DurationMs), nullString(ev.Version), nullString(ev.Platform),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// EventsForDay returns every raw event whose UTC date is day.
func (db *DB) EventsForDay(ctx context.Context, day time.Time) ([]models.RawEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	events, err := queryAndScan(ctx, db.conn, `
		SELECT id, event_type, name, properties, event_ts, session_id,
		       customer_id, machine_id, duration_ms, version, platform
		FROM raw_events
		WHERE event_date = ?
		ORDER BY event_ts, id`,
		[]interface{}{models.TruncateDay(day)},
		scanRawEvent,
	)
	if err := observe("select", "raw_events", start, err); err != nil {
		return nil, err
	}
	return events, nil
}

func scanRawEvent(rows *sql.Rows) (models.RawEvent, error) {
	var (
		ev                                     models.RawEvent
		eventType, props                       string
		customerID, machineID, version, platfm sql.NullString
		duration                               sql.NullInt64
	)
	if err := rows.Scan(&ev.ID, &eventType, &ev.Name, &props, &ev.Timestamp, &ev.SessionID,
		&customerID, &machineID, &duration, &version, &platfm); err != nil {
		return ev, err
	}
	ev.Type = models.EventType(eventType)
	ev.Timestamp = ev.Timestamp.UTC()
	ev.CustomerID = customerID.String
	ev.MachineID = machineID.String
	ev.Version = version.String
	ev.Platform = platfm.String
	if duration.Valid {
		d := duration.Int64
		ev.DurationMs = &d
	}
	if err := json.Unmarshal([]byte(props), &ev.Properties); err != nil {
		return ev, fmt.Errorf("failed to decode properties for %s: %w", ev.ID, err)
	}
	return ev, nil
}

// DeleteEventsBefore purges raw events older than cutoff and returns the
// number removed. Aggregates, sessions and daily counters are untouched.
func (db *DB) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var deleted int64
	result, err := db.conn.ExecContext(ctx, `DELETE FROM raw_events WHERE event_ts < ?`, cutoff.UTC())
	if err == nil {
		deleted, err = result.RowsAffected()
	}
	if err := observe("delete", "raw_events", start, err); err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountEvents returns the number of stored raw events.
func (db *DB) CountEvents(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_events`).Scan(&n)
	if err := observe("count", "raw_events", start, err); err != nil {
		return 0, err
	}
	return n, nil
}
