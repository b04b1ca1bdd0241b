// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package segment

import (
	"strings"
	"time"

	"github.com/tomtom215/pulse/internal/models"
)

// FieldType decides which operators a field accepts and how values parse.
type FieldType string

const (
	TypeNumber FieldType = "number"
	TypeString FieldType = "string"
	TypeEnum   FieldType = "enum"
	TypeDate   FieldType = "date"
)

// AttributePrefix addresses free-form profile attributes, e.g. attr.industry.
const AttributePrefix = "attr."

// Subject is everything a segment can look at for one customer.
type Subject struct {
	Metrics models.CustomerMetrics
	Profile models.CustomerProfile
}

// ID returns the customer id, preferring the profile.
func (s Subject) ID() string {
	if s.Profile.CustomerID != "" {
		return s.Profile.CustomerID
	}
	return s.Metrics.CustomerID
}

// Field describes one addressable attribute. Accessors return the value as
// float64, string or time.Time according to Type, and false when the
// subject has no value.
type Field struct {
	Name string
	Type FieldType
	Enum []string

	number func(Subject) (float64, bool)
	text   func(Subject) (string, bool)
	date   func(Subject) (time.Time, bool)
}

func numberField(name string, get func(Subject) float64) Field {
	return Field{Name: name, Type: TypeNumber, number: func(s Subject) (float64, bool) { return get(s), true }}
}

func textField(name string, typ FieldType, enum []string, get func(Subject) string) Field {
	return Field{Name: name, Type: typ, Enum: enum, text: func(s Subject) (string, bool) {
		v := get(s)
		return v, v != ""
	}}
}

func dateField(name string, get func(Subject) time.Time) Field {
	return Field{Name: name, Type: TypeDate, date: func(s Subject) (time.Time, bool) {
		t := get(s)
		return t, !t.IsZero()
	}}
}

func stageValues() []string {
	out := make([]string, len(models.LifecycleStages))
	for i, st := range models.LifecycleStages {
		out[i] = string(st)
	}
	return out
}

var registry = func() map[string]Field {
	fields := []Field{
		numberField("engagement_score", func(s Subject) float64 { return float64(s.Metrics.EngagementScore) }),
		numberField("velocity", func(s Subject) float64 { return s.Metrics.Velocity }),
		numberField("churn_probability", func(s Subject) float64 { return s.Metrics.ChurnProbability }),

		textField("lifecycle_stage", TypeEnum, stageValues(), func(s Subject) string { return string(s.Metrics.LifecycleStage) }),
		textField("tier", TypeEnum, models.Tiers, func(s Subject) string { return s.Profile.Tier }),
		textField("plan", TypeEnum, models.Plans, func(s Subject) string { return s.Profile.Plan }),

		textField("country", TypeString, nil, func(s Subject) string { return s.Profile.Country }),
		textField("customer_id", TypeString, nil, Subject.ID),

		dateField("signup_at", func(s Subject) time.Time { return s.Profile.SignupAt }),
		dateField("last_active", func(s Subject) time.Time {
			if s.Metrics.LastActive == nil {
				return time.Time{}
			}
			return *s.Metrics.LastActive
		}),
	}
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}()

// LookupField resolves a field name, including attr.<key> names.
func LookupField(name string) (Field, bool) {
	if key, ok := strings.CutPrefix(name, AttributePrefix); ok {
		if key == "" {
			return Field{}, false
		}
		return textField(name, TypeString, nil, func(s Subject) string { return s.Profile.Attributes[key] }), true
	}
	f, ok := registry[name]
	return f, ok
}

// Fields lists the registered field names and types, excluding attributes.
func Fields() map[string]FieldType {
	out := make(map[string]FieldType, len(registry))
	for name, f := range registry {
		out[name] = f.Type
	}
	return out
}
