package analytics

import (
	"time"

	"github.com/heron-analytics/heron/internal/domain"
)

// TopImpactLimit is how many costliest incidents a snapshot carries.
const TopImpactLimit = 10

// Breakdown keys in a snapshot, one per dashboard chart.
const (
	BreakdownOverTime           = "incidents_over_time"
	BreakdownByCategory         = "incidents_by_category"
	BreakdownBySeverity         = "incidents_by_severity"
	BreakdownBySubsystem        = "incidents_by_subsystem"
	BreakdownByRegion           = "incidents_by_region"
	BreakdownByChannel          = "incidents_by_channel"
	BreakdownByRootCause        = "incidents_by_root_cause"
	BreakdownResolutionBySub    = "avg_resolution_by_subsystem"
	BreakdownBreachByRootCause  = "sla_breach_rate_by_root_cause"
	BreakdownBreachShareByRoot  = "sla_breached_share_by_root_cause"
	BreakdownImpactByCategory   = "financial_impact_by_category"
	BreakdownImpactBySubsystem  = "financial_impact_by_subsystem"
)

// BuildSnapshot computes the complete aggregate answer for a filter:
// headline KPIs, every chart breakdown, and the top costliest
// incidents. Insights are attached by the caller. Deterministic given
// identical incidents and filter.
func BuildSnapshot(incidents []*domain.Incident, filter *domain.IncidentFilter) *domain.AggregateSnapshot {
	filtered := Filter(incidents, filter)

	snap := &domain.AggregateSnapshot{
		KPIs:       ComputeKPIs(filtered),
		Breakdowns: make(map[string][]domain.GroupRow),
		ComputedAt: time.Now().UTC(),
	}
	if filter != nil {
		snap.Filter = *filter
	}

	if len(filtered) == 0 {
		// Empty filtered set degrades to zero-valued aggregates.
		return snap
	}

	resolveHours := func(inc *domain.Incident) float64 { return inc.ResolveHours }
	impact := func(inc *domain.Incident) float64 { return inc.FinancialUSD }
	breachedPred := func(inc *domain.Incident) bool { return inc.SLABreached }

	counts := map[string]string{
		BreakdownOverTime:    DimDate,
		BreakdownByCategory:  DimCategory,
		BreakdownBySeverity:  DimSeverity,
		BreakdownBySubsystem: DimSubsystem,
		BreakdownByRegion:    DimRegion,
		BreakdownByChannel:   DimChannel,
		BreakdownByRootCause: DimRootCause,
	}
	for key, dim := range counts {
		rows, _ := GroupCount(filtered, dim)
		snap.Breakdowns[key] = rows
	}

	if rows, _ := GroupMean(filtered, DimSubsystem, resolveHours); rows != nil {
		snap.Breakdowns[BreakdownResolutionBySub] = rows
	}
	if rows, _ := GroupRate(filtered, DimRootCause, breachedPred); rows != nil {
		snap.Breakdowns[BreakdownBreachByRootCause] = rows
	}
	if rows := breachedShareByRootCause(filtered); rows != nil {
		snap.Breakdowns[BreakdownBreachShareByRoot] = rows
	}
	if rows, _ := GroupSum(filtered, DimCategory, impact); rows != nil {
		snap.Breakdowns[BreakdownImpactByCategory] = rows
	}
	if rows, _ := GroupSum(filtered, DimSubsystem, impact); rows != nil {
		snap.Breakdowns[BreakdownImpactBySubsystem] = rows
	}

	top := TopByImpact(filtered, TopImpactLimit)
	snap.TopImpact = make([]domain.Incident, len(top))
	for i, inc := range top {
		snap.TopImpact[i] = *inc
	}

	return snap
}

// breachedShareByRootCause distributes SLA-breached incidents across
// root causes as percentages of all breached incidents. Nil when
// nothing breached.
func breachedShareByRootCause(incidents []*domain.Incident) []domain.GroupRow {
	breached := make([]*domain.Incident, 0)
	for _, inc := range incidents {
		if inc.SLABreached {
			breached = append(breached, inc)
		}
	}
	if len(breached) == 0 {
		return nil
	}

	rows, _ := GroupCount(breached, DimRootCause)
	for i := range rows {
		rows[i].Value = round2(float64(rows[i].Count) / float64(len(breached)) * 100)
	}
	return rows
}
