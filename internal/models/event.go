// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package models defines the data types shared by the ingest, aggregation,
// metrics, cohort and segment components.
package models

import (
	"time"
)

// EventType classifies a raw telemetry event.
type EventType string

const (
	EventPageview     EventType = "pageview"
	EventInteraction  EventType = "interaction"
	EventNavigation   EventType = "navigation"
	EventPerformance  EventType = "performance"
	EventCommand      EventType = "command"
	EventError        EventType = "error"
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
	EventHeartbeat    EventType = "heartbeat"
	EventFeature      EventType = "feature"
)

var eventTypes = map[EventType]bool{
	EventPageview: true, EventInteraction: true, EventNavigation: true,
	EventPerformance: true, EventCommand: true, EventError: true,
	EventSessionStart: true, EventSessionEnd: true, EventHeartbeat: true,
	EventFeature: true,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return eventTypes[t]
}

// TouchesSession reports whether events of this type update the session summary.
func (t EventType) TouchesSession() bool {
	switch t {
	case EventSessionStart, EventPageview, EventHeartbeat, EventSessionEnd:
		return true
	default:
		return false
	}
}

// RawEvent is an immutable stored telemetry event.
type RawEvent struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Name       string          `json:"name"`
	Properties EventProperties `json:"properties"`
	Timestamp  time.Time       `json:"timestamp"`
	SessionID  string          `json:"session_id"`
	CustomerID string          `json:"customer_id,omitempty"`
	MachineID  string          `json:"machine_id,omitempty"`
	DurationMs *int64          `json:"duration_ms,omitempty"`
	Version    string          `json:"version,omitempty"`
	Platform   string          `json:"platform,omitempty"`
}

// Day returns the UTC calendar day the event belongs to.
func (e *RawEvent) Day() time.Time {
	return TruncateDay(e.Timestamp)
}

// EventInput is the wire shape of an event inside an ingest batch.
// LicenseKey is accepted as an alias of CustomerID for CLI clients.
type EventInput struct {
	ID         string                 `json:"id,omitempty" validate:"omitempty,max=128"`
	Type       string                 `json:"type" validate:"required,oneof=pageview interaction navigation performance command error session_start session_end heartbeat feature"`
	EventType  string                 `json:"event_type,omitempty" validate:"-"`
	Name       string                 `json:"name" validate:"required,max=200"`
	EventName  string                 `json:"event_name,omitempty" validate:"-"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  string                 `json:"timestamp" validate:"required,rfc3339"`
	SessionID  string                 `json:"session_id" validate:"required,max=128"`
	CustomerID string                 `json:"customer_id,omitempty" validate:"omitempty,max=128"`
	LicenseKey string                 `json:"license_key,omitempty" validate:"-"`
	MachineID  string                 `json:"machine_id,omitempty" validate:"omitempty,max=128"`
	DurationMs *int64                 `json:"duration_ms,omitempty" validate:"omitempty,gte=0"`
	Version    string                 `json:"version,omitempty" validate:"omitempty,max=64"`
	Platform   string                 `json:"platform,omitempty" validate:"omitempty,max=64"`
}

// Normalize folds the CLI client field names into the canonical ones.
func (in *EventInput) Normalize() {
	if in.Type == "" && in.EventType != "" {
		in.Type = in.EventType
	}
	if in.Name == "" && in.EventName != "" {
		in.Name = in.EventName
	}
	if in.CustomerID == "" && in.LicenseKey != "" {
		in.CustomerID = in.LicenseKey
	}
}

// IngestBatch is the body accepted by the ingest endpoint.
type IngestBatch struct {
	Events []EventInput `json:"events"`
}

// IngestResult reports the outcome of an ingest call.
type IngestResult struct {
	Accepted   int `json:"accepted"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// TruncateDay returns midnight UTC of t's calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
