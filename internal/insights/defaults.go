package insights

import (
	"fmt"

	"github.com/heron-analytics/heron/internal/domain"
)

// UnstableBreachRatePct is the SLA breach rate (percent) above which a
// filtered slice is flagged unstable.
const UnstableBreachRatePct = 30.0

// DefaultRules returns the built-in insight rule set. These seed the
// repository on first start; operators can replace them via the API.
func DefaultRules() []*domain.InsightRule {
	return []*domain.InsightRule{
		// Churn scope: the three retention segments.
		{
			ID:         "churn-high-risk",
			Name:       "High-priority retention target",
			Scope:      domain.ScopeChurn,
			Expression: "probability > 0.7",
			Message:    "Customer at high risk of churn ({probability}): flag as a high-priority retention target and recommend loyalty offers.",
			Severity:   domain.SeverityWarning,
			Rank:       10,
			Enabled:    true,
		},
		{
			ID:         "churn-medium-risk",
			Name:       "Medium risk segment",
			Scope:      domain.ScopeChurn,
			Expression: "probability > 0.4 && probability <= 0.7",
			Message:    "Moderate churn risk ({probability}): increase engagement with bundled packages and contract renewals.",
			Severity:   domain.SeverityNotice,
			Rank:       20,
			Enabled:    true,
		},
		{
			ID:         "churn-loyal",
			Name:       "Loyal customer segment",
			Scope:      domain.ScopeChurn,
			Expression: "probability <= 0.4",
			Message:    "Loyal customer segment ({probability}): maintain with referral rewards and satisfaction surveys.",
			Severity:   domain.SeverityInfo,
			Rank:       30,
			Enabled:    true,
		},

		// Incidents scope: auto-generated dashboard statements.
		{
			ID:         "incidents-empty",
			Name:       "No matching incidents",
			Scope:      domain.ScopeIncidents,
			Expression: "total_incidents == 0",
			Message:    "No incidents match the selected filters.",
			Severity:   domain.SeverityInfo,
			Rank:       5,
			Enabled:    true,
		},
		{
			ID:         "incidents-sla-unstable",
			Name:       "SLA breach rate above stability threshold",
			Scope:      domain.ScopeIncidents,
			Expression: fmt.Sprintf("total_incidents > 0 && sla_breach_rate > %.1f", UnstableBreachRatePct),
			Message:    fmt.Sprintf("SLA breach rate of {sla_breach_rate}%% exceeds the %.0f%% stability threshold: flag the selected subsystems as unstable.", UnstableBreachRatePct),
			Severity:   domain.SeverityWarning,
			Rank:       10,
			Enabled:    true,
		},
		{
			ID:         "incidents-top-category",
			Name:       "Highest incident volume",
			Scope:      domain.ScopeIncidents,
			Expression: "total_incidents > 0 && top_category != ''",
			Message:    "{top_category} has the highest incident volume ({top_category_count} incidents).",
			Severity:   domain.SeverityInfo,
			Rank:       20,
			Enabled:    true,
		},
		{
			ID:         "incidents-worst-subsystem",
			Name:       "Longest average resolution time",
			Scope:      domain.ScopeIncidents,
			Expression: "total_incidents > 0 && worst_subsystem != ''",
			Message:    "{worst_subsystem} has the longest average resolution time at {worst_subsystem_hours} hours.",
			Severity:   domain.SeverityNotice,
			Rank:       30,
			Enabled:    true,
		},
		{
			ID:         "incidents-breach-root-cause",
			Name:       "Dominant SLA-breach root cause",
			Scope:      domain.ScopeIncidents,
			Expression: "total_incidents > 0 && top_breach_root_cause_pct > 0.0",
			Message:    "{top_breach_root_cause} accounts for ~{top_breach_root_cause_pct}% of SLA-breached incidents.",
			Severity:   domain.SeverityNotice,
			Rank:       40,
			Enabled:    true,
		},
		{
			ID:         "incidents-top-impact",
			Name:       "Highest financial impact",
			Scope:      domain.ScopeIncidents,
			Expression: "total_incidents > 0 && top_impact_category != ''",
			Message:    "{top_impact_category} drives the highest financial impact (~${top_impact_category_total}).",
			Severity:   domain.SeverityInfo,
			Rank:       50,
			Enabled:    true,
		},
	}
}
