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

	"github.com/tomtom215/pulse/internal/models"
)

// sessionUpsertSQL builds the single-statement session upsert. When
// resetCond holds for the conflicting row, the visit restarts: counters take
// the incoming values instead of accumulating.
func sessionUpsertSQL(resetCond string) string {
	return fmt.Sprintf(`
		INSERT INTO session_summaries (
			session_id, customer_id, machine_id, started_at, last_seen_at,
			page_count, event_count, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			customer_id = COALESCE(customer_id, EXCLUDED.customer_id),
			machine_id = COALESCE(machine_id, EXCLUDED.machine_id),
			started_at = CASE WHEN %[1]s THEN EXCLUDED.started_at
			                  ELSE LEAST(started_at, EXCLUDED.started_at) END,
			page_count = CASE WHEN %[1]s THEN EXCLUDED.page_count
			                  ELSE page_count + EXCLUDED.page_count END,
			event_count = CASE WHEN %[1]s THEN 1 ELSE event_count + 1 END,
			duration_ms = CASE WHEN %[1]s THEN EXCLUDED.duration_ms
			                   ELSE duration_ms + EXCLUDED.duration_ms END,
			last_seen_at = GREATEST(last_seen_at, EXCLUDED.last_seen_at)`, resetCond)
}

func upsertSession(ctx context.Context, tx *sql.Tx, ev *models.RawEvent, timeout time.Duration) error {
	resetCond := "FALSE"
	if ev.Type == models.EventSessionStart && timeout > 0 {
		resetCond = fmt.Sprintf("EXCLUDED.started_at > last_seen_at + INTERVAL '%d seconds'", int64(timeout.Seconds()))
	}

	var pages int64
	if ev.Type == models.EventPageview {
		pages = 1
	}
	var duration int64
	if ev.DurationMs != nil {
		duration = *ev.DurationMs
	}

	ts := ev.Timestamp.UTC()
	if _, err := tx.ExecContext(ctx, sessionUpsertSQL(resetCond),
		ev.SessionID, nullString(ev.CustomerID), nullString(ev.MachineID),
		ts, ts, pages, duration,
	); err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", ev.SessionID, err)
	}
	return nil
}

// GetSession returns the summary for sessionID or ErrNotFound.
func (db *DB) GetSession(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var (
		s                     models.SessionSummary
		customerID, machineID sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT session_id, customer_id, machine_id, started_at, last_seen_at,
		       page_count, event_count, duration_ms
		FROM session_summaries WHERE session_id = ?`, sessionID,
	).Scan(&s.SessionID, &customerID, &machineID, &s.StartedAt, &s.LastSeenAt,
		&s.PageCount, &s.EventCount, &s.DurationMs)
	if err := observe("select", "session_summaries", start, err); err != nil {
		return nil, err
	}
	s.CustomerID = customerID.String
	s.MachineID = machineID.String
	s.StartedAt = s.StartedAt.UTC()
	s.LastSeenAt = s.LastSeenAt.UTC()
	return &s, nil
}
