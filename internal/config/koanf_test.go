// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies the built-in defaults that other packages rely on.
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Ingest.MaxBatchSize != 50 {
		t.Errorf("Ingest.MaxBatchSize = %d, want 50", cfg.Ingest.MaxBatchSize)
	}
	if cfg.Ingest.RateLimitRequests != 100 || cfg.Ingest.RateLimitWindow != time.Minute {
		t.Errorf("ingest rate limit = %d/%v, want 100/1m", cfg.Ingest.RateLimitRequests, cfg.Ingest.RateLimitWindow)
	}
	if cfg.Ingest.SessionTimeout != 30*time.Minute {
		t.Errorf("Ingest.SessionTimeout = %v, want 30m", cfg.Ingest.SessionTimeout)
	}
	if cfg.Aggregation.RawRetention != 7*24*time.Hour {
		t.Errorf("Aggregation.RawRetention = %v, want 168h", cfg.Aggregation.RawRetention)
	}
	if cfg.Cohort.Horizon != 12 {
		t.Errorf("Cohort.Horizon = %d, want 12", cfg.Cohort.Horizon)
	}
	if cfg.Dispatch.Transport != "memory" {
		t.Errorf("Dispatch.Transport = %q, want memory", cfg.Dispatch.Transport)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"DUCKDB_PATH", "database.path"},
		{"HTTP_PORT", "server.port"},
		{"NATS_URL", "dispatch.nats_url"},
		{"RAW_RETENTION", "aggregation.raw_retention"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"HOME", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("INGEST_MAX_BATCH_SIZE", "25")
	t.Setenv("RAW_RETENTION", "72h")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Ingest.MaxBatchSize != 25 {
		t.Errorf("Ingest.MaxBatchSize = %d, want 25", cfg.Ingest.MaxBatchSize)
	}
	if cfg.Aggregation.RawRetention != 72*time.Hour {
		t.Errorf("Aggregation.RawRetention = %v, want 72h", cfg.Aggregation.RawRetention)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanf_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  path: /tmp/pulse-test.duckdb
dispatch:
  transport: nats
  nats_url: nats://broker:4222
cohort:
  horizon: 6
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/pulse-test.duckdb" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Dispatch.Transport != "nats" || cfg.Dispatch.NATSURL != "nats://broker:4222" {
		t.Errorf("Dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Cohort.Horizon != 6 {
		t.Errorf("Cohort.Horizon = %d, want 6", cfg.Cohort.Horizon)
	}
	// Untouched sections keep their defaults.
	if cfg.Ingest.MaxBatchSize != 50 {
		t.Errorf("Ingest.MaxBatchSize = %d, want default 50", cfg.Ingest.MaxBatchSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"batch too large", func(c *Config) { c.Ingest.MaxBatchSize = 5000 }, "INGEST_MAX_BATCH_SIZE"},
		{"short retention", func(c *Config) { c.Aggregation.RawRetention = time.Hour }, "RAW_RETENTION"},
		{"unknown transport", func(c *Config) { c.Dispatch.Transport = "kafka" }, "DISPATCH_TRANSPORT"},
		{"nats without url", func(c *Config) {
			c.Dispatch.Transport = "nats"
			c.Dispatch.NATSURL = ""
		}, "NATS_URL"},
		{"redis without addr", func(c *Config) {
			c.Cache.Backend = "redis"
			c.Cache.RedisAddr = ""
		}, "REDIS_ADDR"},
		{"horizon zero", func(c *Config) { c.Cohort.Horizon = 0 }, "COHORT_HORIZON"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
