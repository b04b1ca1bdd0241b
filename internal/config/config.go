// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package config loads Pulse configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of precedence.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Invalid configuration")
//	}
//
// A Config is immutable after Load and safe for concurrent reads.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Dispatch    DispatchConfig    `koanf:"dispatch"`
	Engagement  EngagementConfig  `koanf:"engagement"`
	Cohort      CohortConfig      `koanf:"cohort"`
	Segment     SegmentConfig     `koanf:"segment"`
	Cache       CacheConfig       `koanf:"cache"`
	GeoIP       GeoIPConfig       `koanf:"geoip"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads of 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// IngestConfig bounds what a single ingest call may carry.
type IngestConfig struct {
	MaxBatchSize      int           `koanf:"max_batch_size"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	// MaxFutureSkew rejects events stamped further ahead than this.
	MaxFutureSkew time.Duration `koanf:"max_future_skew"`
	// SessionTimeout starts a new visit when a session_start arrives after
	// this much inactivity on the same session id.
	SessionTimeout time.Duration `koanf:"session_timeout"`
}

// AggregationConfig controls the daily rollup and raw event retention.
type AggregationConfig struct {
	RawRetention    time.Duration `koanf:"raw_retention"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	// BackfillRate is the number of days aggregated per second during a backfill.
	BackfillRate float64 `koanf:"backfill_rate"`
}

// DispatchConfig selects the transport for asynchronous aggregation requests.
type DispatchConfig struct {
	// Transport is "memory" (in-process Go channel) or "nats" (JetStream).
	Transport            string        `koanf:"transport"`
	Topic                string        `koanf:"topic"`
	NATSURL              string        `koanf:"nats_url"`
	QueueGroup           string        `koanf:"queue_group"`
	DurableName          string        `koanf:"durable_name"`
	SubscribersCount     int           `koanf:"subscribers_count"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	BreakerThreshold     uint32        `koanf:"breaker_threshold"`
	BreakerTimeout       time.Duration `koanf:"breaker_timeout"`
}

// EngagementConfig tunes the customer metrics engine.
type EngagementConfig struct {
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	SnapshotWorkers int           `koanf:"snapshot_workers"`
}

// CohortConfig tunes retention tables.
type CohortConfig struct {
	Horizon int `koanf:"horizon"`
	// CachePath is the Badger directory for materialized tables; empty keeps
	// the cache in memory.
	CachePath string        `koanf:"cache_path"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// SegmentConfig tunes bulk segment evaluation.
type SegmentConfig struct {
	ScanWorkers       int `koanf:"scan_workers"`
	PreviewSampleSize int `koanf:"preview_sample_size"`
}

// CacheConfig selects where metric snapshots are cached.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string `koanf:"backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// GeoIPConfig points at an optional MaxMind City database.
type GeoIPConfig struct {
	DatabasePath string `koanf:"database_path"`
}

// SecurityConfig holds CORS and global rate limiting switches.
type SecurityConfig struct {
	CORSOrigins       []string `koanf:"cors_origins"`
	RateLimitDisabled bool     `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
