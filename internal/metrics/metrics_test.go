// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "raw_events", "true"))

	RecordDBQuery("insert", "raw_events", 5*time.Millisecond, nil, false)
	RecordDBQuery("insert", "raw_events", 5*time.Millisecond, errors.New("conflict"), true)

	after := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "raw_events", "true"))
	if after-before != 1 {
		t.Errorf("retryable error counter delta = %v, want 1", after-before)
	}
}

func TestRecordIngest(t *testing.T) {
	accepted := testutil.ToFloat64(EventsIngested.WithLabelValues("accepted"))
	skipped := testutil.ToFloat64(EventsIngested.WithLabelValues("skipped"))

	RecordIngest(3, 2, 1)

	if got := testutil.ToFloat64(EventsIngested.WithLabelValues("accepted")) - accepted; got != 3 {
		t.Errorf("accepted delta = %v, want 3", got)
	}
	if got := testutil.ToFloat64(EventsIngested.WithLabelValues("skipped")) - skipped; got != 2 {
		t.Errorf("skipped delta = %v, want 2", got)
	}
}

func TestResultLabels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "success"},
		{"error", errors.New("x"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resultLabel(tt.err); got != tt.want {
				t.Errorf("resultLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(CacheRequests.WithLabelValues("metrics", "hit"))
	RecordCacheLookup("metrics", true)
	RecordCacheLookup("metrics", false)
	if got := testutil.ToFloat64(CacheRequests.WithLabelValues("metrics", "hit")) - before; got != 1 {
		t.Errorf("hit delta = %v, want 1", got)
	}
}
