// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package cohort

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/pulse/internal/cache"
	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/metrics"
	"github.com/tomtom215/pulse/internal/models"
)

// ErrInvalidRange is returned when to precedes from.
var ErrInvalidRange = errors.New("cohort range end is before its start")

const tableKeyPrefix = "cohort_table:"

// Store loads cohort members and their active days.
type Store interface {
	ListProfiles(ctx context.Context, from, to time.Time) ([]models.CustomerProfile, error)
	ActivityDays(ctx context.Context, from, to time.Time) ([]models.ActivityDay, error)
}

// Engine builds retention tables and keeps materialized copies in Badger.
// The Badger data is a cache only and may be deleted at any time.
type Engine struct {
	store Store
	kv    *badger.DB
	cfg   config.CohortConfig
	now   func() time.Time
}

// OpenCache opens the Badger directory at path, or an in-memory instance
// when path is empty.
func OpenCache(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.ValueLogFileSize = 16 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cohort cache: %w", err)
	}
	return db, nil
}

// New returns an Engine. kv may be nil to disable materialization.
func New(store Store, kv *badger.DB, cfg config.CohortConfig) *Engine {
	if cfg.Horizon < 1 {
		cfg.Horizon = DefaultHorizon
	}
	return &Engine{store: store, kv: kv, cfg: cfg, now: time.Now}
}

// Retention returns the table for cohorts whose signup month lies between
// from and to inclusive.
func (e *Engine) Retention(ctx context.Context, from, to time.Time) (models.CohortTable, error) {
	if to.Before(from) {
		return models.CohortTable{}, ErrInvalidRange
	}
	now := e.now().UTC()
	key := tableKey(from, to, e.cfg.Horizon, now)

	if t, ok := e.load(ctx, key); ok {
		t.Cached = true
		return t, nil
	}

	start := monthStart(from)
	signupEnd := monthStart(to).AddDate(0, 1, 0).Add(-time.Nanosecond)
	activityEnd := monthStart(to).AddDate(0, e.cfg.Horizon, 0).Add(-time.Nanosecond)
	if activityEnd.After(now) {
		activityEnd = now
	}

	profiles, err := e.store.ListProfiles(ctx, start, signupEnd)
	if err != nil {
		return models.CohortTable{}, fmt.Errorf("load cohort members: %w", err)
	}
	activity, err := e.store.ActivityDays(ctx, start, activityEnd)
	if err != nil {
		return models.CohortTable{}, fmt.Errorf("load cohort activity: %w", err)
	}

	members := make([]Member, len(profiles))
	for i, p := range profiles {
		members[i] = Member{CustomerID: p.CustomerID, SignupAt: p.SignupAt}
	}

	table := Build(members, activity, Options{From: from, To: to, Horizon: e.cfg.Horizon, Now: now})
	e.save(ctx, key, table)
	return table, nil
}

type tableKeyParams struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Horizon int    `json:"horizon"`
	Day     string `json:"day"`
}

func tableKey(from, to time.Time, horizon int, now time.Time) []byte {
	return []byte(tableKeyPrefix + cache.GenerateKey("retention", tableKeyParams{
		From:    monthStart(from).Format("2006-01"),
		To:      monthStart(to).Format("2006-01"),
		Horizon: horizon,
		Day:     models.TruncateDay(now).Format("2006-01-02"),
	}))
}

func (e *Engine) load(ctx context.Context, key []byte) (models.CohortTable, bool) {
	var t models.CohortTable
	if e.kv == nil {
		return t, false
	}
	err := e.kv.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Msg("Cohort cache read failed")
		}
		metrics.RecordCacheLookup("cohort", false)
		return t, false
	}
	metrics.RecordCacheLookup("cohort", true)
	return t, true
}

func (e *Engine) save(ctx context.Context, key []byte, t models.CohortTable) {
	if e.kv == nil {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	err = e.kv.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if e.cfg.CacheTTL > 0 {
			entry = entry.WithTTL(e.cfg.CacheTTL)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Cohort cache write failed")
	}
}

// Invalidate drops every materialized table.
func (e *Engine) Invalidate() error {
	if e.kv == nil {
		return nil
	}
	return e.kv.DropPrefix([]byte(tableKeyPrefix))
}
