package insights

import (
	"fmt"
	"strconv"

	"github.com/heron-analytics/heron/internal/analytics"
	"github.com/heron-analytics/heron/internal/domain"
)

// SummarizePrediction emits the churn insights for a prediction.
func (e *Engine) SummarizePrediction(p *domain.Prediction) []domain.Insight {
	activation := map[string]any{
		"probability": p.Probability,
		"risk_label":  p.RiskLabel,
		"threshold":   p.Threshold,
	}
	vars := map[string]string{
		"probability": fmt.Sprintf("%.0f%%", p.Probability*100),
		"risk_label":  p.RiskLabel,
	}
	return e.evaluate(domain.ScopeChurn, activation, vars)
}

// SummarizeSnapshot emits the incident insights for an aggregate
// snapshot. Data-derived placeholders (top category, worst subsystem,
// dominant breach root cause, top financial-impact category) come from
// the snapshot's breakdowns.
func (e *Engine) SummarizeSnapshot(snap *domain.AggregateSnapshot) []domain.Insight {
	kpis := snap.KPIs

	activation := map[string]any{
		"total_incidents":        kpis.TotalIncidents,
		"sla_breach_rate":        kpis.SLABreachRate.Value,
		"avg_resolution_hours":   kpis.AvgResolutionHours.Value,
		"total_financial_impact": kpis.TotalFinancialUSD.Value,
		"repeated_rate":          kpis.RepeatedRate.Value,
	}
	vars := map[string]string{
		"total_incidents":      strconv.Itoa(kpis.TotalIncidents),
		"sla_breach_rate":      formatMetric(kpis.SLABreachRate),
		"avg_resolution_hours": formatMetric(kpis.AvgResolutionHours),
	}

	// Leads of the relevant breakdowns feed both the CEL activation
	// and the message placeholders.
	addLead := func(rows []domain.GroupRow, name, valName string) {
		if len(rows) == 0 {
			activation[name] = ""
			activation[valName] = 0.0
			return
		}
		lead := rows[0]
		activation[name] = lead.Key
		activation[valName] = lead.Value
		vars[name] = lead.Key
		vars[valName] = strconv.FormatFloat(lead.Value, 'f', 1, 64)
	}

	addLead(snap.Breakdowns[analytics.BreakdownResolutionBySub], "worst_subsystem", "worst_subsystem_hours")
	addLead(snap.Breakdowns[analytics.BreakdownBreachShareByRoot], "top_breach_root_cause", "top_breach_root_cause_pct")
	addLead(snap.Breakdowns[analytics.BreakdownImpactByCategory], "top_impact_category", "top_impact_category_total")

	activation["top_category"] = ""
	activation["top_category_count"] = int64(0)
	if rows := snap.Breakdowns[analytics.BreakdownByCategory]; len(rows) > 0 {
		activation["top_category"] = rows[0].Key
		activation["top_category_count"] = int64(rows[0].Count)
		vars["top_category"] = rows[0].Key
		vars["top_category_count"] = strconv.Itoa(rows[0].Count)
	}

	return e.evaluate(domain.ScopeIncidents, activation, vars)
}

func formatMetric(m domain.Metric) string {
	if !m.Defined {
		return "n/a"
	}
	return strconv.FormatFloat(m.Value, 'f', 1, 64)
}
