// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pulse/config.yaml",
	"/etc/pulse/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8420,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/pulse.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Ingest: IngestConfig{
			MaxBatchSize:      50,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			MaxFutureSkew:     24 * time.Hour,
			SessionTimeout:    30 * time.Minute,
		},
		Aggregation: AggregationConfig{
			RawRetention:    7 * 24 * time.Hour,
			CleanupInterval: time.Hour,
			BackfillRate:    2,
		},
		Dispatch: DispatchConfig{
			Transport:            "memory",
			Topic:                "aggregation.requests",
			NATSURL:              "nats://127.0.0.1:4222",
			QueueGroup:           "aggregators",
			DurableName:          "pulse-aggregator",
			SubscribersCount:     2,
			CloseTimeout:         30 * time.Second,
			RetryMaxRetries:      3,
			RetryInitialInterval: 500 * time.Millisecond,
			BreakerThreshold:     5,
			BreakerTimeout:       30 * time.Second,
		},
		Engagement: EngagementConfig{
			CacheTTL:        5 * time.Minute,
			SnapshotWorkers: 4,
		},
		Cohort: CohortConfig{
			Horizon:   12,
			CachePath: "",
			CacheTTL:  time.Hour,
		},
		Segment: SegmentConfig{
			ScanWorkers:       8,
			PreviewSampleSize: 20,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			RedisAddr: "127.0.0.1:6379",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers defaults, the optional YAML file and environment
// variables (highest priority), then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unknown variables are ignored.
var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"ingest_max_batch_size":  "ingest.max_batch_size",
	"ingest_rate_limit":      "ingest.rate_limit_requests",
	"ingest_rate_window":     "ingest.rate_limit_window",
	"ingest_max_future_skew": "ingest.max_future_skew",
	"session_timeout":        "ingest.session_timeout",

	"raw_retention":    "aggregation.raw_retention",
	"cleanup_interval": "aggregation.cleanup_interval",
	"backfill_rate":    "aggregation.backfill_rate",

	"dispatch_transport":      "dispatch.transport",
	"dispatch_topic":          "dispatch.topic",
	"nats_url":                "dispatch.nats_url",
	"nats_queue_group":        "dispatch.queue_group",
	"nats_durable_name":       "dispatch.durable_name",
	"nats_subscribers":        "dispatch.subscribers_count",
	"dispatch_close_timeout":  "dispatch.close_timeout",
	"dispatch_retry_count":    "dispatch.retry_max_retries",
	"dispatch_retry_interval": "dispatch.retry_initial_interval",
	"breaker_threshold":       "dispatch.breaker_threshold",
	"breaker_timeout":         "dispatch.breaker_timeout",

	"engagement_cache_ttl":        "engagement.cache_ttl",
	"engagement_snapshot_workers": "engagement.snapshot_workers",

	"cohort_horizon":    "cohort.horizon",
	"cohort_cache_path": "cohort.cache_path",
	"cohort_cache_ttl":  "cohort.cache_ttl",

	"segment_scan_workers":   "segment.scan_workers",
	"segment_preview_sample": "segment.preview_sample_size",

	"cache_backend":  "cache.backend",
	"redis_addr":     "cache.redis_addr",
	"redis_password": "cache.redis_password",
	"redis_db":       "cache.redis_db",

	"geoip_database_path": "geoip.database_path",

	"cors_origins":       "security.cors_origins",
	"disable_rate_limit": "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment names to config paths, for example
// DUCKDB_PATH -> database.path and NATS_URL -> dispatch.nats_url.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
