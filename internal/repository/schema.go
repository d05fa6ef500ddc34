package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaIncidents = `
CREATE TABLE IF NOT EXISTS incidents (
    id TEXT PRIMARY KEY,
    date TIMESTAMP NOT NULL,
    region TEXT NOT NULL,
    channel TEXT NOT NULL,
    severity_level TEXT NOT NULL,
    category TEXT NOT NULL,
    subsystem TEXT NOT NULL,
    root_cause TEXT NOT NULL,
    sla_breached INTEGER NOT NULL,
    time_to_resolve_hours REAL NOT NULL,
    financial_impact_usd REAL NOT NULL,
    is_repeated_incident INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_date ON incidents(date);
CREATE INDEX IF NOT EXISTS idx_incidents_region ON incidents(region);
CREATE INDEX IF NOT EXISTS idx_incidents_category ON incidents(category);
CREATE INDEX IF NOT EXISTS idx_incidents_subsystem ON incidents(subsystem);
`

const schemaPredictions = `
CREATE TABLE IF NOT EXISTS predictions (
    id TEXT PRIMARY KEY,
    probability REAL NOT NULL,
    risk_label TEXT NOT NULL,
    threshold REAL NOT NULL,
    model_version TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    input TEXT,
    insights TEXT
);

CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
CREATE INDEX IF NOT EXISTS idx_predictions_label ON predictions(risk_label);
`

const schemaInsightRules = `
CREATE TABLE IF NOT EXISTS insight_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    scope TEXT NOT NULL,
    expression TEXT NOT NULL,
    message TEXT NOT NULL,
    severity TEXT NOT NULL,
    rank INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_insight_rules_scope ON insight_rules(scope, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaIncidents,
		schemaPredictions,
		schemaInsightRules,
	}
}
