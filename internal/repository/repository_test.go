package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/heron-analytics/heron/internal/domain"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func seedIncidents() []*domain.Incident {
	return []*domain.Incident{
		{ID: "INC-001", Date: day("2024-01-05"), Region: "EMEA", Channel: "web", Severity: "high", Category: "outage", Subsystem: "payments", RootCause: "config error", SLABreached: true, ResolveHours: 10, FinancialUSD: 5000},
		{ID: "INC-002", Date: day("2024-01-10"), Region: "APAC", Channel: "mobile", Severity: "low", Category: "degradation", Subsystem: "search", RootCause: "capacity", ResolveHours: 2, FinancialUSD: 300, Repeated: true},
		{ID: "INC-003", Date: day("2024-02-01"), Region: "EMEA", Channel: "api", Severity: "medium", Category: "security", Subsystem: "auth", RootCause: "third party", ResolveHours: 4, FinancialUSD: 1200},
	}
}

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "heron-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("BulkInsertIncidents", func(t *testing.T) {
		if err := repo.BulkInsertIncidents(ctx, seedIncidents()); err != nil {
			t.Fatalf("BulkInsertIncidents failed: %v", err)
		}

		count, err := repo.CountIncidents(ctx)
		if err != nil {
			t.Fatalf("CountIncidents failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 incidents, got %d", count)
		}

		// Re-insert must be idempotent, not duplicate.
		if err := repo.BulkInsertIncidents(ctx, seedIncidents()); err != nil {
			t.Fatalf("second BulkInsertIncidents failed: %v", err)
		}
		count, _ = repo.CountIncidents(ctx)
		if count != 3 {
			t.Errorf("expected 3 incidents after re-insert, got %d", count)
		}
	})

	t.Run("ListIncidents", func(t *testing.T) {
		all, err := repo.ListIncidents(ctx, nil)
		if err != nil {
			t.Fatalf("ListIncidents failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 incidents, got %d", len(all))
		}
		// Ordered by date.
		if all[0].ID != "INC-001" || all[2].ID != "INC-003" {
			t.Errorf("incidents out of date order: %s ... %s", all[0].ID, all[2].ID)
		}
		if !all[0].SLABreached || all[0].ResolveHours != 10 {
			t.Errorf("row round trip broken: %+v", all[0])
		}
	})

	t.Run("ListIncidentsFiltered", func(t *testing.T) {
		got, err := repo.ListIncidents(ctx, &domain.IncidentFilter{Regions: []string{"EMEA"}})
		if err != nil {
			t.Fatalf("ListIncidents failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 EMEA incidents, got %d", len(got))
		}

		got, err = repo.ListIncidents(ctx, &domain.IncidentFilter{
			From:       day("2024-01-10"),
			Severities: []string{"low", "medium"},
		})
		if err != nil {
			t.Fatalf("ListIncidents failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 incidents, got %d", len(got))
		}

		breached := true
		got, err = repo.ListIncidents(ctx, &domain.IncidentFilter{SLABreached: &breached})
		if err != nil {
			t.Fatalf("ListIncidents failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "INC-001" {
			t.Errorf("expected [INC-001], got %d incidents", len(got))
		}
	})

	t.Run("DistinctValues", func(t *testing.T) {
		regions, err := repo.DistinctValues(ctx, "region")
		if err != nil {
			t.Fatalf("DistinctValues failed: %v", err)
		}
		if len(regions) != 2 || regions[0] != "APAC" || regions[1] != "EMEA" {
			t.Errorf("expected sorted [APAC EMEA], got %v", regions)
		}

		if _, err := repo.DistinctValues(ctx, "password"); err == nil {
			t.Error("expected error for non-whitelisted dimension")
		}
	})

	t.Run("SaveAndGetPrediction", func(t *testing.T) {
		pred := &domain.Prediction{
			ID:           "pred-001",
			Probability:  0.82,
			RiskLabel:    domain.RiskHigh,
			Threshold:    0.5,
			ModelVersion: "churn-v1",
			CreatedAt:    time.Now().UTC(),
			Input:        domain.Record{"plan": "basic", "tenure_months": 3.0},
			Insights: []domain.Insight{
				{RuleID: "churn-high-risk", Severity: domain.SeverityWarning, Message: "retention target"},
			},
		}

		if err := repo.SavePrediction(ctx, pred); err != nil {
			t.Fatalf("SavePrediction failed: %v", err)
		}

		got, err := repo.GetPrediction(ctx, "pred-001")
		if err != nil {
			t.Fatalf("GetPrediction failed: %v", err)
		}
		if got.Probability != 0.82 || got.RiskLabel != domain.RiskHigh {
			t.Errorf("prediction round trip broken: %+v", got)
		}
		if got.Input["plan"] != "basic" {
			t.Errorf("input not restored: %+v", got.Input)
		}
		if len(got.Insights) != 1 || got.Insights[0].RuleID != "churn-high-risk" {
			t.Errorf("insights not restored: %+v", got.Insights)
		}
	})

	t.Run("GetPredictionNotFound", func(t *testing.T) {
		_, err := repo.GetPrediction(ctx, "no-such-id")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InsightRuleLifecycle", func(t *testing.T) {
		rule := &domain.InsightRule{
			ID:         "rule-001",
			Name:       "Test Rule",
			Scope:      domain.ScopeChurn,
			Expression: "probability > 0.5",
			Message:    "x",
			Severity:   domain.SeverityInfo,
			Rank:       10,
			Enabled:    true,
		}
		if err := repo.SaveInsightRule(ctx, rule); err != nil {
			t.Fatalf("SaveInsightRule failed: %v", err)
		}

		second := &domain.InsightRule{
			ID:         "rule-000",
			Name:       "Earlier Rank",
			Scope:      domain.ScopeIncidents,
			Expression: "total_incidents == 0",
			Message:    "y",
			Severity:   domain.SeverityInfo,
			Rank:       5,
			Enabled:    true,
		}
		if err := repo.SaveInsightRule(ctx, second); err != nil {
			t.Fatalf("SaveInsightRule failed: %v", err)
		}

		rules, err := repo.ListInsightRules(ctx, "")
		if err != nil {
			t.Fatalf("ListInsightRules failed: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected 2 rules, got %d", len(rules))
		}
		if rules[0].ID != "rule-000" {
			t.Errorf("expected rank order with rule-000 first, got %s", rules[0].ID)
		}

		// Scope filter
		churnOnly, err := repo.ListInsightRules(ctx, domain.ScopeChurn)
		if err != nil {
			t.Fatalf("ListInsightRules failed: %v", err)
		}
		if len(churnOnly) != 1 || churnOnly[0].ID != "rule-001" {
			t.Errorf("expected only rule-001 for churn scope, got %d rules", len(churnOnly))
		}

		// Upsert replaces
		rule.Name = "Renamed"
		if err := repo.SaveInsightRule(ctx, rule); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		rules, _ = repo.ListInsightRules(ctx, domain.ScopeChurn)
		if rules[0].Name != "Renamed" {
			t.Errorf("expected upserted name, got %s", rules[0].Name)
		}

		// Delete disables
		if err := repo.DeleteInsightRule(ctx, "rule-001"); err != nil {
			t.Fatalf("DeleteInsightRule failed: %v", err)
		}
		rules, _ = repo.ListInsightRules(ctx, "")
		if len(rules) != 1 {
			t.Errorf("expected 1 rule after delete, got %d", len(rules))
		}

		if err := repo.DeleteInsightRule(ctx, "no-such-rule"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	r := &SQLRepository{driver: "postgres"}
	got := r.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("rebind: expected %q, got %q", want, got)
	}

	r = &SQLRepository{driver: "sqlite"}
	passthrough := "SELECT * FROM t WHERE a = ?"
	if got := r.rebind(passthrough); got != passthrough {
		t.Errorf("sqlite rebind must not change query, got %q", got)
	}
}
