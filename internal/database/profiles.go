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

	"github.com/tomtom215/pulse/internal/database/query"
	"github.com/tomtom215/pulse/internal/models"
)

const profileColumns = `customer_id, tier, plan, country, signup_at, first_seen_at, attributes, updated_at`

// ensureProfile creates the profile on first sighting. Later sightings only
// pull first_seen_at earlier and fill a missing country; signup_at follows
// first_seen_at until it is edited explicitly.
func ensureProfile(ctx context.Context, tx *sql.Tx, customerID string, seenAt time.Time, country string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO customer_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, '{}', ?)
		ON CONFLICT (customer_id) DO UPDATE SET
			signup_at = CASE WHEN signup_at = first_seen_at
			                 THEN LEAST(signup_at, EXCLUDED.signup_at)
			                 ELSE signup_at END,
			first_seen_at = LEAST(first_seen_at, EXCLUDED.first_seen_at),
			country = COALESCE(country, EXCLUDED.country)`,
		customerID, models.DefaultTier, models.DefaultPlan, nullString(country),
		seenAt, seenAt, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to ensure profile %s: %w", customerID, err)
	}
	return nil
}

func scanProfile(row interface{ Scan(...interface{}) error }) (models.CustomerProfile, error) {
	var (
		p       models.CustomerProfile
		country sql.NullString
		attrs   string
	)
	if err := row.Scan(&p.CustomerID, &p.Tier, &p.Plan, &country, &p.SignupAt,
		&p.FirstSeenAt, &attrs, &p.UpdatedAt); err != nil {
		return p, err
	}
	p.Country = country.String
	p.SignupAt = p.SignupAt.UTC()
	p.FirstSeenAt = p.FirstSeenAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if err := json.Unmarshal([]byte(attrs), &p.Attributes); err != nil {
		return p, fmt.Errorf("failed to decode attributes for %s: %w", p.CustomerID, err)
	}
	return p, nil
}

// GetProfile returns the profile of customerID or ErrNotFound.
func (db *DB) GetProfile(ctx context.Context, customerID string) (*models.CustomerProfile, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	p, err := scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM customer_profiles WHERE customer_id = ?`, customerID))
	if err := observe("select", "customer_profiles", start, err); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProfiles returns profiles whose signup falls in [from, to]. Zero bounds
// are open.
func (db *DB) ListProfiles(ctx context.Context, from, to time.Time) ([]models.CustomerProfile, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where, args := query.NewWhereBuilder().AddDateRange("signup_at", from, to).BuildWithPrefix()

	start := time.Now()
	profiles, err := queryAndScan(ctx, db.conn,
		`SELECT `+profileColumns+` FROM customer_profiles `+where+` ORDER BY customer_id`,
		args,
		func(rows *sql.Rows) (models.CustomerProfile, error) { return scanProfile(rows) })
	if err := observe("select", "customer_profiles", start, err); err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateProfile applies upd to an existing profile. Attribute keys set to an
// empty string are removed.
func (db *DB) UpdateProfile(ctx context.Context, customerID string, upd models.ProfileUpdate) (*models.CustomerProfile, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var updated models.CustomerProfile
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		p, err := scanProfile(tx.QueryRowContext(ctx,
			`SELECT `+profileColumns+` FROM customer_profiles WHERE customer_id = ?`, customerID))
		if err != nil {
			return err
		}
		applyProfileUpdate(&p, upd)
		p.UpdatedAt = time.Now().UTC()

		attrs, err := json.Marshal(p.Attributes)
		if err != nil {
			return fmt.Errorf("failed to encode attributes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE customer_profiles
			SET tier = ?, plan = ?, country = ?, signup_at = ?, attributes = ?, updated_at = ?
			WHERE customer_id = ?`,
			p.Tier, p.Plan, nullString(p.Country), p.SignupAt, string(attrs), p.UpdatedAt, customerID,
		); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err := observe("update", "customer_profiles", start, err); err != nil {
		return nil, err
	}
	return &updated, nil
}

func applyProfileUpdate(p *models.CustomerProfile, upd models.ProfileUpdate) {
	if upd.Tier != nil {
		p.Tier = *upd.Tier
	}
	if upd.Plan != nil {
		p.Plan = *upd.Plan
	}
	if upd.Country != nil {
		p.Country = *upd.Country
	}
	if upd.SignupAt != nil {
		p.SignupAt = upd.SignupAt.UTC()
	}
	if len(upd.Attributes) > 0 && p.Attributes == nil {
		p.Attributes = make(map[string]string, len(upd.Attributes))
	}
	for k, v := range upd.Attributes {
		if v == "" {
			delete(p.Attributes, k)
			continue
		}
		p.Attributes[k] = v
	}
}
