// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateIngest,
		c.validateAggregation,
		c.validateDispatch,
		c.validateCohort,
		c.validateSegment,
		c.validateCache,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.MaxBatchSize < 1 || c.Ingest.MaxBatchSize > 1000 {
		return fmt.Errorf("INGEST_MAX_BATCH_SIZE must be between 1 and 1000")
	}
	if c.Ingest.RateLimitRequests < 1 {
		return fmt.Errorf("INGEST_RATE_LIMIT must be at least 1")
	}
	if c.Ingest.RateLimitWindow <= 0 {
		return fmt.Errorf("INGEST_RATE_WINDOW must be positive")
	}
	if c.Ingest.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateAggregation() error {
	if c.Aggregation.RawRetention < 24*time.Hour {
		return fmt.Errorf("RAW_RETENTION must be at least 24h")
	}
	if c.Aggregation.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}
	if c.Aggregation.BackfillRate <= 0 {
		return fmt.Errorf("BACKFILL_RATE must be positive")
	}
	return nil
}

func (c *Config) validateDispatch() error {
	switch c.Dispatch.Transport {
	case "memory":
	case "nats":
		if c.Dispatch.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when DISPATCH_TRANSPORT=nats")
		}
	default:
		return fmt.Errorf("DISPATCH_TRANSPORT must be one of: memory, nats (got %q)", c.Dispatch.Transport)
	}
	if c.Dispatch.Topic == "" {
		return fmt.Errorf("DISPATCH_TOPIC is required")
	}
	if c.Dispatch.SubscribersCount < 1 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1")
	}
	return nil
}

func (c *Config) validateCohort() error {
	if c.Cohort.Horizon < 1 || c.Cohort.Horizon > 36 {
		return fmt.Errorf("COHORT_HORIZON must be between 1 and 36")
	}
	return nil
}

func (c *Config) validateSegment() error {
	if c.Segment.ScanWorkers < 1 {
		return fmt.Errorf("SEGMENT_SCAN_WORKERS must be at least 1")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "memory":
		return nil
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
		return nil
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of: memory, redis (got %q)", c.Cache.Backend)
	}
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}
