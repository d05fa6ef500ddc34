package analytics

import (
	"math"

	"github.com/heron-analytics/heron/internal/domain"
)

// ComputeKPIs calculates the headline metrics over a filtered set.
// Rates and means over an empty set come back undefined ("n/a" on the
// wire) rather than zero or an error. Deterministic for identical
// input.
func ComputeKPIs(incidents []*domain.Incident) domain.KPISet {
	n := len(incidents)
	kpis := domain.KPISet{TotalIncidents: n}
	if n == 0 {
		return kpis
	}

	var breached, repeated int
	var totalHours, totalImpact float64
	for _, inc := range incidents {
		if inc.SLABreached {
			breached++
		}
		if inc.Repeated {
			repeated++
		}
		totalHours += inc.ResolveHours
		totalImpact += inc.FinancialUSD
	}

	kpis.SLABreachRate = domain.DefinedMetric(round2(float64(breached) / float64(n) * 100))
	kpis.AvgResolutionHours = domain.DefinedMetric(round2(totalHours / float64(n)))
	kpis.TotalFinancialUSD = domain.DefinedMetric(round2(totalImpact))
	kpis.RepeatedRate = domain.DefinedMetric(round2(float64(repeated) / float64(n) * 100))
	return kpis
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
