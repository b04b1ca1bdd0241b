// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package query

import (
	"testing"
	"time"
)

func TestWhereBuilder_Empty(t *testing.T) {
	wb := NewWhereBuilder()
	if !wb.IsEmpty() {
		t.Error("Expected new builder to be empty")
	}
	clause, args := wb.Build()
	if clause != "1=1" {
		t.Errorf("Expected '1=1', got %q", clause)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestWhereBuilder_Combined(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		build    func(*WhereBuilder)
		want     string
		wantArgs int
	}{
		{
			name:     "date range",
			build:    func(wb *WhereBuilder) { wb.AddDateRange("agg_date", from, to) },
			want:     "WHERE agg_date >= ? AND agg_date <= ?",
			wantArgs: 2,
		},
		{
			name:     "open ended range",
			build:    func(wb *WhereBuilder) { wb.AddDateRange("agg_date", from, time.Time{}) },
			want:     "WHERE agg_date >= ?",
			wantArgs: 1,
		},
		{
			name: "equals skips empty",
			build: func(wb *WhereBuilder) {
				wb.AddEquals("dimension", "utm").AddEquals("metric", "")
			},
			want:     "WHERE dimension = ?",
			wantArgs: 1,
		},
		{
			name:     "in clause",
			build:    func(wb *WhereBuilder) { wb.AddIn("customer_id", []string{"a", "b", "c"}) },
			want:     "WHERE customer_id IN (?, ?, ?)",
			wantArgs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			tt.build(wb)
			got, args := wb.BuildWithPrefix()
			if got != tt.want {
				t.Errorf("BuildWithPrefix() = %q, want %q", got, tt.want)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("len(args) = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}
