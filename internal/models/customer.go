// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package models

import "time"

// SessionSummary accumulates one session's activity.
type SessionSummary struct {
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	MachineID  string    `json:"machine_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	PageCount  int64     `json:"page_count"`
	EventCount int64     `json:"event_count"`
	DurationMs int64     `json:"duration_ms"`
}

// CustomerDailyActivity is the per-customer daily counter row written at ingest.
type CustomerDailyActivity struct {
	CustomerID   string    `json:"customer_id"`
	Date         time.Time `json:"date"`
	CommandCount int64     `json:"command_count"`
	EventCount   int64     `json:"event_count"`
	Machines     []string  `json:"machines"`
}

// ActivityDay marks a customer as active on a UTC date.
type ActivityDay struct {
	CustomerID string    `json:"customer_id"`
	Date       time.Time `json:"date"`
}

// CustomerProfile carries the descriptive attributes segments filter on.
type CustomerProfile struct {
	CustomerID  string            `json:"customer_id"`
	Tier        string            `json:"tier"`
	Plan        string            `json:"plan"`
	Country     string            `json:"country,omitempty"`
	SignupAt    time.Time         `json:"signup_at"`
	FirstSeenAt time.Time         `json:"first_seen_at"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ProfileUpdate is the editable subset of a profile.
type ProfileUpdate struct {
	Tier       *string           `json:"tier,omitempty" validate:"omitempty,oneof=free pro team enterprise"`
	Plan       *string           `json:"plan,omitempty" validate:"omitempty,oneof=monthly annual trial none"`
	Country    *string           `json:"country,omitempty" validate:"omitempty,len=2"`
	SignupAt   *time.Time        `json:"signup_at,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" validate:"omitempty,max=32"`
}

// Default profile values for customers first seen through telemetry.
const (
	DefaultTier = "free"
	DefaultPlan = "none"
)

// Tiers and Plans list the accepted profile values.
var (
	Tiers = []string{"free", "pro", "team", "enterprise"}
	Plans = []string{"monthly", "annual", "trial", "none"}
)

// UsageWindow is the rolling view of a customer's counters at a point in
// time. It is derived on read and never stored.
type UsageWindow struct {
	CustomerID     string    `json:"customer_id"`
	AsOf           time.Time `json:"as_of"`
	HasActivity    bool      `json:"has_activity"`
	// Window offsets are measured back from the end of the as-of UTC day E:
	// CommandsLast3d covers [E-3d, E), the as-of day and the two before it;
	// CommandsPrev7d covers [E-10d, E-3d), the seven days before that.
	CommandsLast3d int64     `json:"commands_last_3d"`
	CommandsPrev7d int64     `json:"commands_prev_7d"`
	ActiveDays30d  int       `json:"active_days_30d"`
	MachineCount   int       `json:"machine_count"`
	TotalCommands  int64     `json:"total_commands"`
	LastActive     time.Time `json:"last_active"`
}

// LifecycleStage is a customer's categorical status.
type LifecycleStage string

const (
	StageNew         LifecycleStage = "new"
	StageOnboarding  LifecycleStage = "onboarding"
	StageActivated   LifecycleStage = "activated"
	StageEngaged     LifecycleStage = "engaged"
	StagePowerUser   LifecycleStage = "power_user"
	StageAtRisk      LifecycleStage = "at_risk"
	StageChurning    LifecycleStage = "churning"
	StageChurned     LifecycleStage = "churned"
	StageReactivated LifecycleStage = "reactivated"
	StageActive      LifecycleStage = "active"
)

// LifecycleStages lists every stage value segments may compare against.
var LifecycleStages = []LifecycleStage{
	StageNew, StageOnboarding, StageActivated, StageEngaged, StagePowerUser,
	StageAtRisk, StageChurning, StageChurned, StageReactivated, StageActive,
}

// CustomerMetrics is the point-in-time derived view of a customer.
type CustomerMetrics struct {
	CustomerID       string         `json:"customer_id"`
	EngagementScore  int            `json:"engagement_score"`
	Velocity         float64        `json:"velocity"`
	LifecycleStage   LifecycleStage `json:"lifecycle_stage"`
	ChurnProbability float64        `json:"churn_probability"`
	LastActive       *time.Time     `json:"last_active,omitempty"`
	AsOf             time.Time      `json:"as_of"`
	Window           UsageWindow    `json:"window"`
}
