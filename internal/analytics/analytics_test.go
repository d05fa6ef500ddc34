package analytics

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/heron-analytics/heron/internal/domain"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func testIncidents() []*domain.Incident {
	return []*domain.Incident{
		{ID: "INC-001", Date: day("2024-01-05"), Region: "EMEA", Channel: "web", Severity: "high", Category: "outage", Subsystem: "payments", RootCause: "config error", SLABreached: true, ResolveHours: 10, FinancialUSD: 5000, Repeated: false},
		{ID: "INC-002", Date: day("2024-01-10"), Region: "EMEA", Channel: "mobile", Severity: "low", Category: "degradation", Subsystem: "search", RootCause: "capacity", SLABreached: false, ResolveHours: 2, FinancialUSD: 300, Repeated: true},
		{ID: "INC-003", Date: day("2024-02-01"), Region: "APAC", Channel: "web", Severity: "high", Category: "outage", Subsystem: "payments", RootCause: "config error", SLABreached: true, ResolveHours: 6, FinancialUSD: 8000, Repeated: true},
		{ID: "INC-004", Date: day("2024-02-15"), Region: "AMER", Channel: "api", Severity: "medium", Category: "security", Subsystem: "auth", RootCause: "third party", SLABreached: false, ResolveHours: 4, FinancialUSD: 1200, Repeated: false},
	}
}

func TestFilterEmptyReturnsAll(t *testing.T) {
	incidents := testIncidents()

	got := Filter(incidents, nil)
	if len(got) != len(incidents) {
		t.Errorf("nil filter: expected %d incidents, got %d", len(incidents), len(got))
	}

	got = Filter(incidents, &domain.IncidentFilter{})
	if len(got) != len(incidents) {
		t.Errorf("empty filter: expected %d incidents, got %d", len(incidents), len(got))
	}
}

func TestFilterDimensionsANDCombine(t *testing.T) {
	incidents := testIncidents()

	got := Filter(incidents, &domain.IncidentFilter{
		Regions:    []string{"EMEA"},
		Severities: []string{"high"},
	})
	if len(got) != 1 || got[0].ID != "INC-001" {
		t.Fatalf("expected [INC-001], got %d incidents", len(got))
	}
}

func TestFilterValuesORCombine(t *testing.T) {
	incidents := testIncidents()

	got := Filter(incidents, &domain.IncidentFilter{
		Regions: []string{"EMEA", "APAC"},
	})
	if len(got) != 3 {
		t.Errorf("expected 3 incidents for EMEA or APAC, got %d", len(got))
	}
}

func TestFilterCaseInsensitive(t *testing.T) {
	incidents := testIncidents()

	got := Filter(incidents, &domain.IncidentFilter{Regions: []string{"emea"}})
	if len(got) != 2 {
		t.Errorf("expected 2 incidents for lowercase region, got %d", len(got))
	}
}

func TestFilterDateRange(t *testing.T) {
	incidents := testIncidents()

	got := Filter(incidents, &domain.IncidentFilter{
		From: day("2024-01-10"),
		To:   day("2024-02-01"),
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 incidents in range, got %d", len(got))
	}
	if got[0].ID != "INC-002" || got[1].ID != "INC-003" {
		t.Errorf("range boundaries must be inclusive, got %s %s", got[0].ID, got[1].ID)
	}
}

func TestFilterSLAFlag(t *testing.T) {
	incidents := testIncidents()

	breached := true
	got := Filter(incidents, &domain.IncidentFilter{SLABreached: &breached})
	if len(got) != 2 {
		t.Errorf("expected 2 breached incidents, got %d", len(got))
	}

	breached = false
	got = Filter(incidents, &domain.IncidentFilter{SLABreached: &breached})
	if len(got) != 2 {
		t.Errorf("expected 2 non-breached incidents, got %d", len(got))
	}
}

func TestFilterEmptyResultIsValid(t *testing.T) {
	got := Filter(testIncidents(), &domain.IncidentFilter{Regions: []string{"LATAM"}})
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

func TestComputeKPIs(t *testing.T) {
	kpis := ComputeKPIs(testIncidents())

	if kpis.TotalIncidents != 4 {
		t.Errorf("expected 4 total, got %d", kpis.TotalIncidents)
	}
	if !kpis.SLABreachRate.Defined || kpis.SLABreachRate.Value != 50.0 {
		t.Errorf("expected breach rate 50%%, got %+v", kpis.SLABreachRate)
	}
	if !kpis.AvgResolutionHours.Defined || kpis.AvgResolutionHours.Value != 5.5 {
		t.Errorf("expected avg resolution 5.5h, got %+v", kpis.AvgResolutionHours)
	}
	if !kpis.TotalFinancialUSD.Defined || kpis.TotalFinancialUSD.Value != 14500 {
		t.Errorf("expected total impact 14500, got %+v", kpis.TotalFinancialUSD)
	}
	if !kpis.RepeatedRate.Defined || kpis.RepeatedRate.Value != 50.0 {
		t.Errorf("expected repeated rate 50%%, got %+v", kpis.RepeatedRate)
	}
}

func TestComputeKPIsEmptySet(t *testing.T) {
	kpis := ComputeKPIs(nil)

	if kpis.TotalIncidents != 0 {
		t.Errorf("expected 0 total, got %d", kpis.TotalIncidents)
	}
	if kpis.SLABreachRate.Defined || kpis.AvgResolutionHours.Defined || kpis.RepeatedRate.Defined {
		t.Error("rates and means over an empty set must be undefined")
	}

	// Undefined metrics serialize as "n/a", never as a division result.
	data, err := json.Marshal(kpis)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"n/a"`) {
		t.Errorf("expected n/a markers in %s", data)
	}
}

func TestGroupCountSorting(t *testing.T) {
	rows, err := GroupCount(testIncidents(), DimCategory)
	if err != nil {
		t.Fatalf("group failed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(rows))
	}
	if rows[0].Key != "outage" || rows[0].Count != 2 {
		t.Errorf("expected outage first with count 2, got %s/%d", rows[0].Key, rows[0].Count)
	}
	// Tied counts break by key, ascending.
	if rows[1].Key != "degradation" || rows[2].Key != "security" {
		t.Errorf("tie break by key: got %s then %s", rows[1].Key, rows[2].Key)
	}
}

func TestGroupByDateChronological(t *testing.T) {
	rows, err := GroupCount(testIncidents(), DimDate)
	if err != nil {
		t.Fatalf("group failed: %v", err)
	}

	for i := 1; i < len(rows); i++ {
		if rows[i-1].Key >= rows[i].Key {
			t.Fatalf("date buckets out of order: %s before %s", rows[i-1].Key, rows[i].Key)
		}
	}
}

func TestGroupMean(t *testing.T) {
	rows, err := GroupMean(testIncidents(), DimSubsystem, func(inc *domain.Incident) float64 { return inc.ResolveHours })
	if err != nil {
		t.Fatalf("group failed: %v", err)
	}

	// payments: (10+6)/2 = 8, sorted first by value.
	if rows[0].Key != "payments" || rows[0].Value != 8.0 {
		t.Errorf("expected payments mean 8.0 first, got %s/%.2f", rows[0].Key, rows[0].Value)
	}
}

func TestGroupRate(t *testing.T) {
	rows, err := GroupRate(testIncidents(), DimRootCause, func(inc *domain.Incident) bool { return inc.SLABreached })
	if err != nil {
		t.Fatalf("group failed: %v", err)
	}

	for _, row := range rows {
		switch row.Key {
		case "config error":
			if row.Value != 100.0 {
				t.Errorf("config error: expected 100%%, got %.2f", row.Value)
			}
		case "capacity", "third party":
			if row.Value != 0.0 {
				t.Errorf("%s: expected 0%%, got %.2f", row.Key, row.Value)
			}
		}
	}
}

func TestGroupUnknownDimension(t *testing.T) {
	if _, err := GroupCount(testIncidents(), "flavour"); err == nil {
		t.Error("expected error for unknown dimension")
	}
}

func TestTopByImpact(t *testing.T) {
	top := TopByImpact(testIncidents(), 2)

	if len(top) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(top))
	}
	if top[0].ID != "INC-003" || top[1].ID != "INC-001" {
		t.Errorf("expected INC-003 then INC-001, got %s then %s", top[0].ID, top[1].ID)
	}
}

func TestTopByImpactTieBreak(t *testing.T) {
	incidents := []*domain.Incident{
		{ID: "INC-B", FinancialUSD: 100},
		{ID: "INC-A", FinancialUSD: 100},
	}
	top := TopByImpact(incidents, 2)
	if top[0].ID != "INC-A" {
		t.Errorf("ties must break by ID, got %s first", top[0].ID)
	}
}

func TestBuildSnapshot(t *testing.T) {
	incidents := testIncidents()
	snap := BuildSnapshot(incidents, &domain.IncidentFilter{Regions: []string{"EMEA"}})

	if snap.KPIs.TotalIncidents != 2 {
		t.Errorf("expected 2 filtered incidents, got %d", snap.KPIs.TotalIncidents)
	}
	if len(snap.TopImpact) != 2 {
		t.Errorf("expected 2 top incidents, got %d", len(snap.TopImpact))
	}

	// Breakdown counts always sum to the filtered total.
	for key, rows := range snap.Breakdowns {
		if key != BreakdownOverTime && key != BreakdownByCategory {
			continue
		}
		sum := 0
		for _, row := range rows {
			sum += row.Count
		}
		if sum != snap.KPIs.TotalIncidents {
			t.Errorf("%s: counts sum to %d, want %d", key, sum, snap.KPIs.TotalIncidents)
		}
	}
}

func TestBuildSnapshotEmptySet(t *testing.T) {
	snap := BuildSnapshot(testIncidents(), &domain.IncidentFilter{Regions: []string{"LATAM"}})

	if snap.KPIs.TotalIncidents != 0 {
		t.Errorf("expected 0 incidents, got %d", snap.KPIs.TotalIncidents)
	}
	if len(snap.Breakdowns) != 0 {
		t.Errorf("expected no breakdowns for empty set, got %d", len(snap.Breakdowns))
	}
	if len(snap.TopImpact) != 0 {
		t.Errorf("expected no top incidents, got %d", len(snap.TopImpact))
	}
}

func TestBuildSnapshotBreachShare(t *testing.T) {
	snap := BuildSnapshot(testIncidents(), nil)

	rows, ok := snap.Breakdowns[BreakdownBreachShareByRoot]
	if !ok {
		t.Fatal("expected breached-share breakdown")
	}
	// Both breached incidents share the same root cause.
	if rows[0].Key != "config error" || rows[0].Value != 100.0 {
		t.Errorf("expected config error at 100%%, got %s/%.2f", rows[0].Key, rows[0].Value)
	}
}

func TestBuildSnapshotDeterministic(t *testing.T) {
	incidents := testIncidents()
	filter := &domain.IncidentFilter{Severities: []string{"high"}}

	a := BuildSnapshot(incidents, filter)
	b := BuildSnapshot(incidents, filter)
	a.ComputedAt = b.ComputedAt

	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs must produce identical snapshots")
	}
}
