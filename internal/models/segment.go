// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package models

import "time"

// Logic combines conditions or groups.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator compares a field against a value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpBetween     Operator = "between"
)

// Condition is a single field comparison. Value is a string, a number or,
// for between, a two-element array.
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// ConditionGroup is an ordered list of conditions joined by Logic.
type ConditionGroup struct {
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

// SegmentDefinition is the evaluable part of a segment.
type SegmentDefinition struct {
	RootLogic Logic            `json:"root_logic"`
	Groups    []ConditionGroup `json:"groups"`
}

// Segment is a saved, re-evaluable customer filter.
type Segment struct {
	ID          string            `json:"id"`
	Name        string            `json:"name" validate:"required,max=120"`
	Description string            `json:"description,omitempty" validate:"max=1000"`
	Definition  SegmentDefinition `json:"definition"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// SegmentPreview is the result of evaluating an unsaved segment.
type SegmentPreview struct {
	MatchCount int       `json:"match_count"`
	Evaluated  int       `json:"evaluated"`
	Sample     []string  `json:"sample"`
	AsOf       time.Time `json:"as_of"`
}
