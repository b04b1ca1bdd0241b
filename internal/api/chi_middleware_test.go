// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/pulse/internal/config"
)

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil)
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.IngestRequests != 100 || m.config.IngestWindow != time.Minute {
		t.Errorf("ingest limit = %d per %v, want 100 per 1m", m.config.IngestRequests, m.config.IngestWindow)
	}
}

func TestMiddlewareConfigFrom(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.CORSOrigins = []string{"https://dash.example.com"}
	cfg.Ingest.RateLimitRequests = 10
	cfg.Ingest.RateLimitWindow = 30 * time.Second

	mc := MiddlewareConfigFrom(cfg)
	if mc.IngestRequests != 10 || mc.IngestWindow != 30*time.Second {
		t.Errorf("got %d per %v", mc.IngestRequests, mc.IngestWindow)
	}
	if len(mc.CORSAllowedOrigins) != 1 {
		t.Errorf("CORSAllowedOrigins = %v", mc.CORSAllowedOrigins)
	}
}

func TestRateLimitIngest(t *testing.T) {
	mc := DefaultChiMiddlewareConfig()
	mc.IngestRequests = 2
	mc.IngestWindow = time.Minute
	ts := newTestServer(t, mc)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
		req.Body = http.NoBody
		req.RemoteAddr = ip + ":5123"
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("198.51.100.1"); code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i)
		}
	}
	if code := send("198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", code)
	}
	if code := send("198.51.100.2"); code == http.StatusTooManyRequests {
		t.Error("limit should be per client IP")
	}

	// Other endpoints are not limited.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/segments", nil)
	req.RemoteAddr = "198.51.100.1:5123"
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("segments status = %d, want 200", rec.Code)
	}
}

func TestRateLimitIngest_Disabled(t *testing.T) {
	mc := DefaultChiMiddlewareConfig()
	mc.IngestRequests = 1
	mc.RateLimitDisabled = true
	ts := newTestServer(t, mc)

	for i := 0; i < 3; i++ {
		if rec := ts.do(http.MethodPost, "/api/v1/events", eventsBody(1)); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}

func TestAPISecurityHeaders(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/api/v1/segments", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP")
	}
}

func TestCORSPreflight(t *testing.T) {
	mc := DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = []string{"https://dash.example.com"}
	ts := newTestServer(t, mc)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/segments", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
