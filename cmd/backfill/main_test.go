// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package main

import (
	"testing"
	"time"
)

func TestParseRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		from, to string
		wantDays int
		wantErr  bool
	}{
		{name: "explicit range", from: "2026-03-01", to: "2026-03-07", wantDays: 7},
		{name: "to defaults to today", from: "2026-03-08", wantDays: 3},
		{name: "single day", from: "2026-03-05", to: "2026-03-05", wantDays: 1},
		{name: "missing from", to: "2026-03-07", wantErr: true},
		{name: "bad from", from: "03/01/2026", wantErr: true},
		{name: "inverted", from: "2026-03-07", to: "2026-03-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := parseRange(tt.from, tt.to, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if days := int(to.Sub(from).Hours()/24) + 1; days != tt.wantDays {
				t.Errorf("days = %d, want %d", days, tt.wantDays)
			}
		})
	}
}
