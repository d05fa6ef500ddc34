package analytics

import (
	"fmt"
	"sort"

	"github.com/heron-analytics/heron/internal/domain"
)

// Dimension keys accepted by the grouping functions.
const (
	DimRegion    = "region"
	DimChannel   = "channel"
	DimSeverity  = "severity_level"
	DimCategory  = "category"
	DimSubsystem = "subsystem"
	DimRootCause = "root_cause"
	DimDate      = "date"
)

// Dimensions lists every groupable dimension, in presentation order.
func Dimensions() []string {
	return []string{DimRegion, DimChannel, DimSeverity, DimCategory, DimSubsystem, DimRootCause, DimDate}
}

// dimensionValue extracts the named dimension from an incident.
// "date" buckets by calendar day.
func dimensionValue(inc *domain.Incident, dim string) (string, error) {
	switch dim {
	case DimRegion:
		return inc.Region, nil
	case DimChannel:
		return inc.Channel, nil
	case DimSeverity:
		return inc.Severity, nil
	case DimCategory:
		return inc.Category, nil
	case DimSubsystem:
		return inc.Subsystem, nil
	case DimRootCause:
		return inc.RootCause, nil
	case DimDate:
		return inc.Date.Format("2006-01-02"), nil
	default:
		return "", fmt.Errorf("unknown dimension %q", dim)
	}
}

// GroupCount counts incidents per dimension value, sorted by count
// descending (ties broken by key for determinism).
func GroupCount(incidents []*domain.Incident, dim string) ([]domain.GroupRow, error) {
	return group(incidents, dim, func(inc *domain.Incident) float64 { return 1 }, true)
}

// GroupSum sums a measure per dimension value, sorted by value
// descending.
func GroupSum(incidents []*domain.Incident, dim string, measure func(*domain.Incident) float64) ([]domain.GroupRow, error) {
	return group(incidents, dim, measure, false)
}

// GroupMean averages a measure per dimension value, sorted by value
// descending.
func GroupMean(incidents []*domain.Incident, dim string, measure func(*domain.Incident) float64) ([]domain.GroupRow, error) {
	rows, err := group(incidents, dim, measure, false)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Value = round2(rows[i].Value / float64(rows[i].Count))
	}
	sortRows(rows)
	return rows, nil
}

// GroupRate computes, per dimension value, the share of incidents
// matching a predicate, as a percentage.
func GroupRate(incidents []*domain.Incident, dim string, pred func(*domain.Incident) bool) ([]domain.GroupRow, error) {
	rows, err := group(incidents, dim, func(inc *domain.Incident) float64 {
		if pred(inc) {
			return 1
		}
		return 0
	}, false)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Value = round2(rows[i].Value / float64(rows[i].Count) * 100)
	}
	sortRows(rows)
	return rows, nil
}

// TopByImpact returns the n costliest incidents, by financial impact
// descending (ties broken by incident ID for determinism).
func TopByImpact(incidents []*domain.Incident, n int) []*domain.Incident {
	out := make([]*domain.Incident, len(incidents))
	copy(out, incidents)
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinancialUSD != out[j].FinancialUSD {
			return out[i].FinancialUSD > out[j].FinancialUSD
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func group(incidents []*domain.Incident, dim string, measure func(*domain.Incident) float64, countSort bool) ([]domain.GroupRow, error) {
	type bucket struct {
		count int
		value float64
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	for _, inc := range incidents {
		key, err := dimensionValue(inc, dim)
		if err != nil {
			return nil, err
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.count++
		b.value += measure(inc)
	}

	rows := make([]domain.GroupRow, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		rows = append(rows, domain.GroupRow{Key: key, Count: b.count, Value: round2(b.value)})
	}

	if dim == DimDate {
		// Time series read chronologically, not by magnitude.
		sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
		return rows, nil
	}
	if countSort {
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].Count != rows[j].Count {
				return rows[i].Count > rows[j].Count
			}
			return rows[i].Key < rows[j].Key
		})
		return rows, nil
	}
	sortRows(rows)
	return rows, nil
}

func sortRows(rows []domain.GroupRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].Key < rows[j].Key
	})
}
