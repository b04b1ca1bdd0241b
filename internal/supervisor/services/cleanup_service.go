// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package services

import (
	"context"
	"time"

	"github.com/tomtom215/pulse/internal/logging"
)

// Cleaner deletes raw events past retention.
type Cleaner interface {
	Cleanup(ctx context.Context, now time.Time) (int64, error)
}

// CleanupService runs Cleanup once at start and then every interval.
// Failed runs are logged and retried on the next tick; they do not restart
// the service.
type CleanupService struct {
	cleaner  Cleaner
	interval time.Duration
	now      func() time.Time
}

func NewCleanupService(cleaner Cleaner, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupService{cleaner: cleaner, interval: interval, now: time.Now}
}

func (s *CleanupService) Serve(ctx context.Context) error {
	logger := logging.WithComponent("cleanup")

	run := func() {
		deleted, err := s.cleaner.Cleanup(ctx, s.now())
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn().Err(err).Msg("Raw event cleanup failed")
			}
			return
		}
		if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("Raw events past retention removed")
		}
	}

	run()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}

func (s *CleanupService) String() string {
	return "retention-cleanup"
}
