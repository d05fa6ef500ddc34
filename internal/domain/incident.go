package domain

import (
	"encoding/json"
	"time"
)

// Incident represents one row of the operational-incident dataset.
// The dataset is loaded once at startup and is read-only thereafter.
type Incident struct {
	ID            string    `json:"incidentId"`
	Date          time.Time `json:"date"`
	Region        string    `json:"region"`
	Channel       string    `json:"channel"`
	Severity      string    `json:"severityLevel"`
	Category      string    `json:"category"`
	Subsystem     string    `json:"subsystem"`
	RootCause     string    `json:"rootCause"`
	SLABreached   bool      `json:"slaBreached"`
	ResolveHours  float64   `json:"timeToResolveHours"`
	FinancialUSD  float64   `json:"financialImpactUsd"`
	Repeated      bool      `json:"isRepeatedIncident"`
}

// IncidentFilter is a conjunction of independent predicates over
// incident fields. Empty slices and zero times mean "no restriction";
// values within one dimension are OR-combined, dimensions are
// AND-combined.
type IncidentFilter struct {
	From       time.Time `json:"from,omitempty"`
	To         time.Time `json:"to,omitempty"`
	Regions    []string  `json:"regions,omitempty"`
	Channels   []string  `json:"channels,omitempty"`
	Severities []string  `json:"severities,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	Subsystems []string  `json:"subsystems,omitempty"`

	// SLABreached: nil = all, true = breached only, false = met only.
	SLABreached *bool `json:"slaBreached,omitempty"`
}

// IsEmpty reports whether the filter imposes no restriction.
func (f *IncidentFilter) IsEmpty() bool {
	return f.From.IsZero() && f.To.IsZero() &&
		len(f.Regions) == 0 && len(f.Channels) == 0 &&
		len(f.Severities) == 0 && len(f.Categories) == 0 &&
		len(f.Subsystems) == 0 && f.SLABreached == nil
}

// Metric is a single computed scalar. Rates and means over an empty
// filtered set are undefined rather than zero; undefined metrics
// serialize as "n/a" so the rendering layer never divides by zero.
type Metric struct {
	Value   float64
	Defined bool
}

// DefinedMetric wraps a computed value.
func DefinedMetric(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

// MarshalJSON emits the value, or "n/a" when undefined.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return json.Marshal("n/a")
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts either a number or the "n/a" marker.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*m = Metric{Value: v, Defined: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = Metric{}
	return nil
}

// KPISet holds the headline metrics for a filtered incident view.
type KPISet struct {
	TotalIncidents     int    `json:"totalIncidents"`
	SLABreachRate      Metric `json:"slaBreachRate"`      // percent
	AvgResolutionHours Metric `json:"avgResolutionHours"`
	TotalFinancialUSD  Metric `json:"totalFinancialImpactUsd"`
	RepeatedRate       Metric `json:"repeatedIncidentRate"` // percent
}

// GroupRow is one bucket of a grouped aggregate (chart feed).
type GroupRow struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// AggregateSnapshot is the complete computed answer for one filter:
// KPIs, per-dimension breakdowns, top-N incidents, and insights.
// Snapshots are ephemeral and cacheable by filter hash.
type AggregateSnapshot struct {
	Filter     IncidentFilter        `json:"filter"`
	KPIs       KPISet                `json:"kpis"`
	Breakdowns map[string][]GroupRow `json:"breakdowns,omitempty"`
	TopImpact  []Incident            `json:"topImpact,omitempty"`
	Insights   []Insight             `json:"insights,omitempty"`
	ComputedAt time.Time             `json:"computedAt"`
}
