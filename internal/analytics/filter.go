// Package analytics computes filtered aggregates over the incident
// dataset: KPIs, per-dimension breakdowns, and top-N rankings.
package analytics

import (
	"strings"

	"github.com/heron-analytics/heron/internal/domain"
)

// Filter returns the incidents matching all predicates of the filter.
// Single pass; values within one dimension OR-combine, dimensions
// AND-combine, string matches are case-insensitive. An empty filter
// returns the input unchanged; an empty result is valid, not an error.
func Filter(incidents []*domain.Incident, f *domain.IncidentFilter) []*domain.Incident {
	if f == nil || f.IsEmpty() {
		return incidents
	}

	regions := toLowerSet(f.Regions)
	channels := toLowerSet(f.Channels)
	severities := toLowerSet(f.Severities)
	categories := toLowerSet(f.Categories)
	subsystems := toLowerSet(f.Subsystems)

	out := make([]*domain.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if !f.From.IsZero() && inc.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && inc.Date.After(f.To) {
			continue
		}
		if !matches(regions, inc.Region) ||
			!matches(channels, inc.Channel) ||
			!matches(severities, inc.Severity) ||
			!matches(categories, inc.Category) ||
			!matches(subsystems, inc.Subsystem) {
			continue
		}
		if f.SLABreached != nil && inc.SLABreached != *f.SLABreached {
			continue
		}
		out = append(out, inc)
	}
	return out
}

// matches reports whether val is allowed by the set; an empty set
// imposes no restriction.
func matches(set map[string]bool, val string) bool {
	if len(set) == 0 {
		return true
	}
	return set[strings.ToLower(val)]
}

func toLowerSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}
