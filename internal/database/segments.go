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

const segmentColumns = `id, name, description, definition, created_at, updated_at`

func scanSegment(row interface{ Scan(...interface{}) error }) (models.Segment, error) {
	var (
		s   models.Segment
		def string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &def, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if err := json.Unmarshal([]byte(def), &s.Definition); err != nil {
		return s, fmt.Errorf("failed to decode segment %s: %w", s.ID, err)
	}
	return s, nil
}

// InsertSegment stores a new segment. The caller assigns ID and timestamps.
func (db *DB) InsertSegment(ctx context.Context, s *models.Segment) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	def, err := json.Marshal(s.Definition)
	if err != nil {
		return fmt.Errorf("failed to encode segment definition: %w", err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO segments (`+segmentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Description, string(def), s.CreatedAt, s.UpdatedAt)
	return observe("insert", "segments", start, err)
}

// UpdateSegment replaces name, description and definition of an existing
// segment. Returns ErrNotFound when id is unknown.
func (db *DB) UpdateSegment(ctx context.Context, s *models.Segment) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	def, err := json.Marshal(s.Definition)
	if err != nil {
		return fmt.Errorf("failed to encode segment definition: %w", err)
	}

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, `
		UPDATE segments SET name = ?, description = ?, definition = ?, updated_at = ?
		WHERE id = ?`,
		s.Name, s.Description, string(def), s.UpdatedAt, s.ID)
	if err == nil {
		err = checkRowsAffected(result)
	}
	return observe("update", "segments", start, err)
}

// DeleteSegment removes a segment. Returns ErrNotFound when id is unknown.
func (db *DB) DeleteSegment(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, id)
	if err == nil {
		err = checkRowsAffected(result)
	}
	return observe("delete", "segments", start, err)
}

func (db *DB) GetSegment(ctx context.Context, id string) (*models.Segment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	s, err := scanSegment(db.conn.QueryRowContext(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id))
	if err := observe("select", "segments", start, err); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) ListSegments(ctx context.Context) ([]models.Segment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	segments, err := queryAndScan(ctx, db.conn,
		`SELECT `+segmentColumns+` FROM segments ORDER BY created_at, id`, nil,
		func(rows *sql.Rows) (models.Segment, error) { return scanSegment(rows) })
	if err := observe("select", "segments", start, err); err != nil {
		return nil, err
	}
	return segments, nil
}

func checkRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
