package domain

// Insight scopes: a rule applies to churn predictions or to incident
// aggregates, never both.
const (
	ScopeChurn     = "churn"
	ScopeIncidents = "incidents"
)

// Insight severities, in increasing order of urgency.
const (
	SeverityInfo    = "info"
	SeverityNotice  = "notice"
	SeverityWarning = "warning"
)

// InsightRule defines one threshold rule for the summarizer. The
// expression is CEL over the scope's variables (probability for churn;
// sla_breach_rate, avg_resolution_hours, ... for incidents) and must
// evaluate to bool. Message may reference {placeholders} filled from
// the evaluated context.
//
// Rules are a static ordered list: every matching rule emits its
// insight, in ascending Rank order. There is no hidden precedence.
type InsightRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Scope       string `json:"scope"` // "churn" or "incidents"
	Expression  string `json:"expression"`
	Message     string `json:"message"`
	Severity    string `json:"severity"`
	Rank        int    `json:"rank"`
	Enabled     bool   `json:"enabled"`
}

// Insight is a short derived text statement for end-user display.
// Ephemeral, recomputed per request.
type Insight struct {
	RuleID   string `json:"ruleId"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}
