// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package segment validates, compiles and evaluates boolean customer
// filters.
//
// A definition is checked once, when it is saved or previewed; compiling it
// yields a Matcher whose Match never fails. Matchers hold no mutable state
// and may be shared across goroutines.
package segment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/pulse/internal/models"
)

// ConfigError pinpoints the condition that makes a definition unusable.
// Group and Condition are -1 when the error is not about a specific one.
type ConfigError struct {
	Group     int
	Condition int
	Field     string
	Operator  models.Operator
	Reason    string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Group < 0:
		return "invalid segment: " + e.Reason
	case e.Condition < 0:
		return fmt.Sprintf("invalid segment: group %d: %s", e.Group, e.Reason)
	}
	return fmt.Sprintf("invalid segment: group %d condition %d (%s %s): %s",
		e.Group, e.Condition, e.Field, e.Operator, e.Reason)
}

// Details is the error body the API returns.
func (e *ConfigError) Details() map[string]interface{} {
	d := map[string]interface{}{"reason": e.Reason}
	if e.Group >= 0 {
		d["group"] = e.Group
	}
	if e.Condition >= 0 {
		d["condition"] = e.Condition
		d["field"] = e.Field
		d["operator"] = string(e.Operator)
	}
	return d
}

var allowedOps = map[FieldType]map[models.Operator]bool{
	TypeNumber: {models.OpEquals: true, models.OpNotEquals: true, models.OpGreaterThan: true, models.OpLessThan: true, models.OpBetween: true},
	TypeDate:   {models.OpEquals: true, models.OpNotEquals: true, models.OpGreaterThan: true, models.OpLessThan: true, models.OpBetween: true},
	TypeString: {models.OpEquals: true, models.OpNotEquals: true, models.OpContains: true},
	TypeEnum:   {models.OpEquals: true, models.OpNotEquals: true},
}

type predicate func(Subject) bool

type group struct {
	logic      models.Logic
	conditions []predicate
}

// Matcher evaluates a compiled definition.
type Matcher struct {
	logic  models.Logic
	groups []group
}

// Validate reports the first problem in def as a *ConfigError.
func Validate(def models.SegmentDefinition) error {
	_, err := Compile(def)
	return err
}

// Compile checks def and prepares it for evaluation.
func Compile(def models.SegmentDefinition) (*Matcher, error) {
	if !validLogic(def.RootLogic) {
		return nil, &ConfigError{Group: -1, Condition: -1,
			Reason: fmt.Sprintf("root logic %q must be AND or OR", def.RootLogic)}
	}
	if len(def.Groups) == 0 {
		return nil, &ConfigError{Group: -1, Condition: -1, Reason: "at least one group is required"}
	}

	m := &Matcher{logic: def.RootLogic, groups: make([]group, len(def.Groups))}
	for gi, g := range def.Groups {
		if !validLogic(g.Logic) {
			return nil, &ConfigError{Group: gi, Condition: -1,
				Reason: fmt.Sprintf("logic %q must be AND or OR", g.Logic)}
		}
		if len(g.Conditions) == 0 {
			return nil, &ConfigError{Group: gi, Condition: -1, Reason: "group has no conditions"}
		}
		m.groups[gi].logic = g.Logic
		for ci, c := range g.Conditions {
			p, reason := compileCondition(c)
			if reason != "" {
				return nil, &ConfigError{Group: gi, Condition: ci, Field: c.Field, Operator: c.Operator, Reason: reason}
			}
			m.groups[gi].conditions = append(m.groups[gi].conditions, p)
		}
	}
	return m, nil
}

func validLogic(l models.Logic) bool {
	return l == models.LogicAnd || l == models.LogicOr
}

// Match evaluates groups left to right and stops as soon as the outcome is
// known, both inside a group and across groups.
func (m *Matcher) Match(s Subject) bool {
	return combine(m.logic, len(m.groups), func(i int) bool {
		g := m.groups[i]
		return combine(g.logic, len(g.conditions), func(j int) bool {
			return g.conditions[j](s)
		})
	})
}

func combine(logic models.Logic, n int, eval func(int) bool) bool {
	if logic == models.LogicOr {
		for i := 0; i < n; i++ {
			if eval(i) {
				return true
			}
		}
		return false
	}
	for i := 0; i < n; i++ {
		if !eval(i) {
			return false
		}
	}
	return true
}

// compileCondition returns a predicate, or a non-empty reason when the
// condition cannot be evaluated.
func compileCondition(c models.Condition) (predicate, string) {
	f, ok := LookupField(c.Field)
	if !ok {
		return nil, fmt.Sprintf("unknown field %q", c.Field)
	}
	if !allowedOps[TypeNumber][c.Operator] && !allowedOps[TypeString][c.Operator] {
		return nil, fmt.Sprintf("unknown operator %q", c.Operator)
	}
	if !allowedOps[f.Type][c.Operator] {
		return nil, fmt.Sprintf("operator %s is not supported for %s fields", c.Operator, f.Type)
	}

	switch f.Type {
	case TypeNumber:
		return compileNumber(f, c)
	case TypeDate:
		return compileDate(f, c)
	default:
		return compileText(f, c)
	}
}

func compileNumber(f Field, c models.Condition) (predicate, string) {
	if c.Operator == models.OpBetween {
		raw, reason := pair(c.Value)
		if reason != "" {
			return nil, reason
		}
		lo, err1 := toNumber(raw[0])
		hi, err2 := toNumber(raw[1])
		if err1 != nil || err2 != nil {
			return nil, "between bounds must be numbers"
		}
		if lo > hi {
			return nil, "between lower bound is greater than upper bound"
		}
		return func(s Subject) bool {
			v, ok := f.number(s)
			return ok && v >= lo && v <= hi
		}, ""
	}

	want, err := toNumber(c.Value)
	if err != nil {
		return nil, "value must be a number"
	}
	cmp := numberComparison(c.Operator)
	return func(s Subject) bool {
		v, ok := f.number(s)
		if !ok {
			return c.Operator == models.OpNotEquals
		}
		return cmp(v, want)
	}, ""
}

func numberComparison(op models.Operator) func(a, b float64) bool {
	switch op {
	case models.OpGreaterThan:
		return func(a, b float64) bool { return a > b }
	case models.OpLessThan:
		return func(a, b float64) bool { return a < b }
	case models.OpNotEquals:
		return func(a, b float64) bool { return a != b }
	default:
		return func(a, b float64) bool { return a == b }
	}
}

func compileDate(f Field, c models.Condition) (predicate, string) {
	if c.Operator == models.OpBetween {
		raw, reason := pair(c.Value)
		if reason != "" {
			return nil, reason
		}
		lo, _, err1 := toDate(raw[0])
		hi, hiDateOnly, err2 := toDate(raw[1])
		if err1 != nil || err2 != nil {
			return nil, "between bounds must be dates (YYYY-MM-DD or RFC3339)"
		}
		if hiDateOnly {
			hi = hi.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		if lo.After(hi) {
			return nil, "between lower bound is after upper bound"
		}
		return func(s Subject) bool {
			v, ok := f.date(s)
			return ok && !v.Before(lo) && !v.After(hi)
		}, ""
	}

	want, dateOnly, err := toDate(c.Value)
	if err != nil {
		return nil, "value must be a date (YYYY-MM-DD or RFC3339)"
	}
	// A date-only value names a whole UTC day: greater_than starts after it.
	after := want
	if dateOnly {
		after = want.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return func(s Subject) bool {
		v, ok := f.date(s)
		if !ok {
			return c.Operator == models.OpNotEquals
		}
		switch c.Operator {
		case models.OpGreaterThan:
			return v.After(after)
		case models.OpLessThan:
			return v.Before(want)
		}
		same := v.Equal(want)
		if dateOnly {
			same = models.TruncateDay(v).Equal(want)
		}
		if c.Operator == models.OpNotEquals {
			return !same
		}
		return same
	}, ""
}

func compileText(f Field, c models.Condition) (predicate, string) {
	want, ok := c.Value.(string)
	if !ok {
		return nil, "value must be a string"
	}
	if f.Type == TypeEnum && !inEnum(f.Enum, want) {
		return nil, fmt.Sprintf("value %q is not one of: %s", want, strings.Join(f.Enum, ", "))
	}
	needle := strings.ToLower(want)

	return func(s Subject) bool {
		v, ok := f.text(s)
		switch c.Operator {
		case models.OpNotEquals:
			return !ok || !strings.EqualFold(v, want)
		case models.OpContains:
			return ok && strings.Contains(strings.ToLower(v), needle)
		default:
			return ok && strings.EqualFold(v, want)
		}
	}, ""
}

func inEnum(values []string, v string) bool {
	for _, e := range values {
		if e == v {
			return true
		}
	}
	return false
}

func pair(v interface{}) ([2]interface{}, string) {
	list, ok := v.([]interface{})
	if !ok || len(list) != 2 {
		return [2]interface{}{}, "between needs exactly two values"
	}
	return [2]interface{}{list[0], list[1]}, ""
}

func toNumber(v interface{}) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

// toDate accepts YYYY-MM-DD or RFC3339 and reports which form was used.
func toDate(v interface{}) (time.Time, bool, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false, fmt.Errorf("not a date: %T", v)
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
