// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package segment

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/pulse/internal/config"
	"github.com/tomtom215/pulse/internal/database"
	"github.com/tomtom215/pulse/internal/models"
)

func cond(field string, op models.Operator, value interface{}) models.Condition {
	return models.Condition{Field: field, Operator: op, Value: value}
}

func subject(id, tier string, score int, churn float64) Subject {
	return Subject{
		Metrics: models.CustomerMetrics{CustomerID: id, EngagementScore: score, ChurnProbability: churn,
			LifecycleStage: models.StageActive, Velocity: 1},
		Profile: models.CustomerProfile{CustomerID: id, Tier: tier, Plan: "annual", Country: "NL",
			SignupAt:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			Attributes: map[string]string{"industry": "Logistics"}},
	}
}

var population = []Subject{
	subject("ent-high", "enterprise", 85, 5),
	subject("ent-low", "enterprise", 40, 20),
	subject("pro-high", "pro", 90, 10),
	subject("free-churny", "free", 10, 92),
	subject("ent-edge", "enterprise", 70, 81),
}

func TestMatch_EnterpriseEngaged(t *testing.T) {
	def := models.SegmentDefinition{
		RootLogic: models.LogicAnd,
		Groups: []models.ConditionGroup{{
			Logic: models.LogicAnd,
			Conditions: []models.Condition{
				cond("tier", models.OpEquals, "enterprise"),
				cond("engagement_score", models.OpGreaterThan, 70.0),
			},
		}},
	}
	m, err := Compile(def)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ids, err := Scan(context.Background(), m, population, 2)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if want := []string{"ent-high"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("matched %v, want %v", ids, want)
	}

	def.RootLogic = models.LogicOr
	def.Groups = append(def.Groups, models.ConditionGroup{
		Logic:      models.LogicAnd,
		Conditions: []models.Condition{cond("churn_probability", models.OpGreaterThan, 80.0)},
	})
	m, err = Compile(def)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ids, err = Scan(context.Background(), m, population, 3)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if want := []string{"ent-high", "free-churny", "ent-edge"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("matched %v, want %v", ids, want)
	}
}

func TestMatch_Operators(t *testing.T) {
	s := subject("c1", "pro", 55, 30)
	last := time.Date(2026, 3, 9, 17, 30, 0, 0, time.UTC)
	s.Metrics.LastActive = &last

	tests := []struct {
		name string
		c    models.Condition
		want bool
	}{
		{"number equals", cond("engagement_score", models.OpEquals, 55.0), true},
		{"number not equals", cond("engagement_score", models.OpNotEquals, 55.0), false},
		{"number less than", cond("churn_probability", models.OpLessThan, 31.0), true},
		{"number from string", cond("engagement_score", models.OpGreaterThan, "50"), true},
		{"number between inclusive", cond("engagement_score", models.OpBetween, []interface{}{55.0, 60.0}), true},
		{"number between outside", cond("velocity", models.OpBetween, []interface{}{1.5, 3.0}), false},
		{"enum equals", cond("tier", models.OpEquals, "pro"), true},
		{"enum not equals", cond("lifecycle_stage", models.OpNotEquals, "churned"), true},
		{"string contains", cond("attr.industry", models.OpContains, "logis"), true},
		{"missing attribute equals", cond("attr.size", models.OpEquals, "large"), false},
		{"missing attribute not equals", cond("attr.size", models.OpNotEquals, "large"), true},
		{"country equals", cond("country", models.OpEquals, "nl"), true},
		{"date same day", cond("last_active", models.OpEquals, "2026-03-09"), true},
		{"date after", cond("signup_at", models.OpGreaterThan, "2026-01-01T00:00:00Z"), true},
		{"date between day bounds", cond("last_active", models.OpBetween, []interface{}{"2026-03-01", "2026-03-09"}), true},
		{"date before", cond("signup_at", models.OpLessThan, "2026-01-15"), false},
		{"date greater than same day", cond("last_active", models.OpGreaterThan, "2026-03-09"), false},
		{"date greater than previous day", cond("last_active", models.OpGreaterThan, "2026-03-08"), true},
		{"date less than same day", cond("last_active", models.OpLessThan, "2026-03-09"), false},
		{"date less than next day", cond("last_active", models.OpLessThan, "2026-03-10"), true},
		{"instant greater than keeps time", cond("last_active", models.OpGreaterThan, "2026-03-09T12:00:00Z"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compile(models.SegmentDefinition{
				RootLogic: models.LogicAnd,
				Groups:    []models.ConditionGroup{{Logic: models.LogicAnd, Conditions: []models.Condition{tt.c}}},
			})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if got := m.Match(s); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
			if again := m.Match(s); again != tt.want {
				t.Errorf("second Match = %v, want %v", again, tt.want)
			}
		})
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		c          models.Condition
		wantReason string
	}{
		{"between on enum", cond("tier", models.OpBetween, []interface{}{"free", "pro"}),
			"operator between is not supported for enum fields"},
		{"contains on number", cond("engagement_score", models.OpContains, "7"),
			"operator contains is not supported for number fields"},
		{"greater than on string", cond("country", models.OpGreaterThan, "DE"),
			"operator greater_than is not supported for string fields"},
		{"unknown field", cond("favourite_colour", models.OpEquals, "blue"), `unknown field "favourite_colour"`},
		{"unknown operator", cond("tier", "starts_with", "ent"), `unknown operator "starts_with"`},
		{"bad enum value", cond("tier", models.OpEquals, "platinum"),
			`value "platinum" is not one of: free, pro, team, enterprise`},
		{"bad number", cond("velocity", models.OpLessThan, "fast"), "value must be a number"},
		{"between single value", cond("engagement_score", models.OpBetween, 10.0), "between needs exactly two values"},
		{"between reversed", cond("engagement_score", models.OpBetween, []interface{}{80.0, 20.0}),
			"between lower bound is greater than upper bound"},
		{"bad date", cond("signup_at", models.OpGreaterThan, "last tuesday"),
			"value must be a date (YYYY-MM-DD or RFC3339)"},
		{"string value type", cond("country", models.OpEquals, 31.0), "value must be a string"},
		{"empty attribute key", cond("attr.", models.OpEquals, "x"), `unknown field "attr."`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(models.SegmentDefinition{
				RootLogic: models.LogicAnd,
				Groups: []models.ConditionGroup{
					{Logic: models.LogicOr, Conditions: []models.Condition{cond("tier", models.OpEquals, "pro")}},
					{Logic: models.LogicAnd, Conditions: []models.Condition{cond("plan", models.OpEquals, "annual"), tt.c}},
				},
			})
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if cfgErr.Group != 1 || cfgErr.Condition != 1 || cfgErr.Field != tt.c.Field || cfgErr.Operator != tt.c.Operator {
				t.Errorf("location = %+v", cfgErr)
			}
			if cfgErr.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", cfgErr.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidate_Structure(t *testing.T) {
	ok := []models.Condition{cond("tier", models.OpEquals, "pro")}
	tests := []struct {
		name      string
		def       models.SegmentDefinition
		wantGroup int
	}{
		{"bad root logic", models.SegmentDefinition{RootLogic: "XOR",
			Groups: []models.ConditionGroup{{Logic: models.LogicAnd, Conditions: ok}}}, -1},
		{"no groups", models.SegmentDefinition{RootLogic: models.LogicAnd}, -1},
		{"bad group logic", models.SegmentDefinition{RootLogic: models.LogicOr,
			Groups: []models.ConditionGroup{{Logic: models.LogicAnd, Conditions: ok}, {Logic: "NAND", Conditions: ok}}}, 1},
		{"empty group", models.SegmentDefinition{RootLogic: models.LogicOr,
			Groups: []models.ConditionGroup{{Logic: models.LogicAnd}}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *ConfigError
			if err := Validate(tt.def); !errors.As(err, &cfgErr) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if cfgErr.Group != tt.wantGroup || cfgErr.Condition != -1 {
				t.Errorf("location = group %d condition %d", cfgErr.Group, cfgErr.Condition)
			}
		})
	}
}

func TestScan_Cancelled(t *testing.T) {
	m, err := Compile(models.SegmentDefinition{
		RootLogic: models.LogicAnd,
		Groups: []models.ConditionGroup{{Logic: models.LogicAnd,
			Conditions: []models.Condition{cond("engagement_score", models.OpGreaterThan, -1.0)}}},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	subjects := make([]Subject, 1000)
	for i := range subjects {
		subjects[i] = subject(fmt.Sprintf("c%04d", i), "free", i%100, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ids, err := Scan(ctx, m, subjects, 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if ids != nil {
		t.Errorf("ids = %d entries, want none", len(ids))
	}

	ids, err = Scan(context.Background(), m, subjects, 4)
	if err != nil || len(ids) != len(subjects) {
		t.Fatalf("Scan = %d ids, %v", len(ids), err)
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("ids not in input order")
	}
}

type staticSnapshot map[string]models.CustomerMetrics

func (s staticSnapshot) Snapshot(context.Context, time.Time) (map[string]models.CustomerMetrics, error) {
	return s, nil
}

func setupService(t *testing.T, snap staticSnapshot) (*Service, *database.DB) {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 1})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db, snap, config.SegmentConfig{ScanWorkers: 2, PreviewSampleSize: 1}), db
}

func TestService_CRUDAndPreview(t *testing.T) {
	ctx := context.Background()
	svc, db := setupService(t, staticSnapshot{
		"acme":   {CustomerID: "acme", EngagementScore: 88, LifecycleStage: models.StagePowerUser},
		"globex": {CustomerID: "globex", EngagementScore: 75, LifecycleStage: models.StageActive},
	})

	// Profiles appear on first activity; promote two customers to enterprise.
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	var batch []models.RawEvent
	for i, id := range []string{"acme", "globex", "initech"} {
		batch = append(batch, models.RawEvent{ID: "e" + id, Type: models.EventCommand, Name: "run",
			Timestamp: day.Add(time.Duration(i) * time.Minute), SessionID: "s-" + id, CustomerID: id})
	}
	if _, err := db.WriteBatch(ctx, batch, 30*time.Minute); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	enterprise := "enterprise"
	for _, id := range []string{"acme", "initech"} {
		if _, err := db.UpdateProfile(ctx, id, models.ProfileUpdate{Tier: &enterprise}); err != nil {
			t.Fatalf("UpdateProfile: %v", err)
		}
	}

	def := models.SegmentDefinition{
		RootLogic: models.LogicAnd,
		Groups: []models.ConditionGroup{{Logic: models.LogicAnd, Conditions: []models.Condition{
			cond("tier", models.OpEquals, "enterprise"),
			cond("engagement_score", models.OpGreaterThan, 70.0),
		}}},
	}

	preview, err := svc.Preview(ctx, def)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.MatchCount != 1 || preview.Evaluated != 3 || !reflect.DeepEqual(preview.Sample, []string{"acme"}) {
		t.Errorf("preview = %+v", preview)
	}

	created, err := svc.Create(ctx, models.Segment{Name: "Engaged enterprise", Definition: def})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("created = %+v", created)
	}

	members, err := svc.Members(ctx, created.ID)
	if err != nil || !reflect.DeepEqual(members, []string{"acme"}) {
		t.Fatalf("Members = %v, %v", members, err)
	}

	def.RootLogic = models.LogicOr
	def.Groups = append(def.Groups, models.ConditionGroup{Logic: models.LogicAnd,
		Conditions: []models.Condition{cond("lifecycle_stage", models.OpEquals, "new")}})
	if _, err := svc.Update(ctx, created.ID, models.Segment{Name: "Engaged or new", Definition: def}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	// initech has a profile but no metrics in the snapshot, so it is new.
	members, err = svc.Members(ctx, created.ID)
	if err != nil || !reflect.DeepEqual(members, []string{"acme", "initech"}) {
		t.Fatalf("Members after update = %v, %v", members, err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
}

func TestService_CreateRejectsInvalid(t *testing.T) {
	svc, _ := setupService(t, staticSnapshot{})
	ctx := context.Background()

	_, err := svc.Create(ctx, models.Segment{Name: "bad", Definition: models.SegmentDefinition{
		RootLogic: models.LogicAnd,
		Groups: []models.ConditionGroup{{Logic: models.LogicAnd,
			Conditions: []models.Condition{cond("plan", models.OpBetween, []interface{}{"monthly", "annual"})}}},
	}})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "plan" {
		t.Errorf("err = %v, want ConfigError on plan", err)
	}

	_, err = svc.Create(ctx, models.Segment{Definition: models.SegmentDefinition{
		RootLogic: models.LogicAnd,
		Groups: []models.ConditionGroup{{Logic: models.LogicAnd,
			Conditions: []models.Condition{cond("tier", models.OpEquals, "pro")}}},
	}})
	if err == nil || errors.As(err, &cfgErr) {
		t.Errorf("missing name err = %v, want validation error", err)
	}
}
