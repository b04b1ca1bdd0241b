// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/pulse/internal/models"
)

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}

func TestValidateStruct_EventInput(t *testing.T) {
	valid := models.EventInput{
		Type:      "command",
		Name:      "build",
		Timestamp: "2026-03-10T12:00:00Z",
		SessionID: "s-1",
	}

	tests := []struct {
		name      string
		mutate    func(*models.EventInput)
		wantField string
		wantTag   string
	}{
		{name: "valid", mutate: func(*models.EventInput) {}},
		{name: "missing name", mutate: func(e *models.EventInput) { e.Name = "" }, wantField: "name", wantTag: "required"},
		{name: "unknown type", mutate: func(e *models.EventInput) { e.Type = "click" }, wantField: "type", wantTag: "oneof"},
		{name: "bad timestamp", mutate: func(e *models.EventInput) { e.Timestamp = "yesterday" }, wantField: "timestamp", wantTag: "rfc3339"},
		{name: "long session id", mutate: func(e *models.EventInput) { e.SessionID = strings.Repeat("x", 129) }, wantField: "session_id", wantTag: "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			verr := ValidateStruct(&in)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			got := verr.Errors()[0]
			if got.Field() != tt.wantField || got.Tag() != tt.wantTag {
				t.Errorf("got %s/%s, want %s/%s", got.Field(), got.Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	tier := "platinum"
	verr := ValidateStruct(&models.ProfileUpdate{Tier: &tier})
	if verr == nil {
		t.Fatal("expected error for unknown tier")
	}
	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %s", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "tier must be one of") {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "tier" {
		t.Errorf("Details = %v", apiErr.Details)
	}

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	multi := ValidateStruct(&models.AggregateQuery{From: day, To: day.AddDate(0, 0, -1), Metric: "median"})
	if multi == nil {
		t.Fatal("expected errors for inverted range and unknown metric")
	}
	if n := len(multi.Errors()); n != 2 {
		t.Errorf("errors = %d, want 2", n)
	}
	if _, ok := multi.ToAPIError().Details["fields"]; !ok {
		t.Error("multiple errors should be listed under fields")
	}
}
