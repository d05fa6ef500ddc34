// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/heron-analytics/heron/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// incidentColumns whitelists the dimensions DistinctValues accepts.
var incidentColumns = map[string]string{
	"region":         "region",
	"channel":        "channel",
	"severity_level": "severity_level",
	"category":       "category",
	"subsystem":      "subsystem",
	"root_cause":     "root_cause",
}

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// BulkInsertIncidents loads the startup dataset in one transaction.
// Existing rows with the same ID are replaced, so repeated startups
// against a persistent database stay idempotent.
func (r *SQLRepository) BulkInsertIncidents(ctx context.Context, incidents []*domain.Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO incidents (
			id, date, region, channel, severity_level, category,
			subsystem, root_cause, sla_breached, time_to_resolve_hours,
			financial_impact_usd, is_repeated_incident
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			region = excluded.region,
			channel = excluded.channel,
			severity_level = excluded.severity_level,
			category = excluded.category,
			subsystem = excluded.subsystem,
			root_cause = excluded.root_cause,
			sla_breached = excluded.sla_breached,
			time_to_resolve_hours = excluded.time_to_resolve_hours,
			financial_impact_usd = excluded.financial_impact_usd,
			is_repeated_incident = excluded.is_repeated_incident
	`

	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, inc := range incidents {
		if _, err := stmt.ExecContext(ctx,
			inc.ID, inc.Date, inc.Region, inc.Channel, inc.Severity,
			inc.Category, inc.Subsystem, inc.RootCause,
			boolToInt(inc.SLABreached), inc.ResolveHours,
			inc.FinancialUSD, boolToInt(inc.Repeated),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountIncidents returns the total dataset row count.
func (r *SQLRepository) CountIncidents(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&count)
	return count, err
}

// ListIncidents returns incidents matching the filter, ordered by
// date. A nil or empty filter returns the full dataset.
func (r *SQLRepository) ListIncidents(ctx context.Context, filter *domain.IncidentFilter) ([]*domain.Incident, error) {
	query := `
		SELECT id, date, region, channel, severity_level, category,
			   subsystem, root_cause, sla_breached, time_to_resolve_hours,
			   financial_impact_usd, is_repeated_incident
		FROM incidents
	`

	where, args := buildWhere(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY date, id"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []*domain.Incident
	for rows.Next() {
		var inc domain.Incident
		var sla, repeated int

		if err := rows.Scan(
			&inc.ID, &inc.Date, &inc.Region, &inc.Channel, &inc.Severity,
			&inc.Category, &inc.Subsystem, &inc.RootCause,
			&sla, &inc.ResolveHours, &inc.FinancialUSD, &repeated,
		); err != nil {
			return nil, err
		}

		inc.SLABreached = sla == 1
		inc.Repeated = repeated == 1
		incidents = append(incidents, &inc)
	}

	return incidents, rows.Err()
}

// DistinctValues returns the sorted distinct values of a dimension,
// feeding the dashboard filter dropdowns.
func (r *SQLRepository) DistinctValues(ctx context.Context, dimension string) ([]string, error) {
	col, ok := incidentColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dimension %q", ErrInvalidInput, dimension)
	}

	query := fmt.Sprintf(`SELECT DISTINCT %s FROM incidents ORDER BY %s`, col, col)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

// SavePrediction stores a prediction result.
func (r *SQLRepository) SavePrediction(ctx context.Context, p *domain.Prediction) error {
	if p.ID == "" {
		return fmt.Errorf("%w: prediction id is required", ErrInvalidInput)
	}

	input, _ := json.Marshal(p.Input)
	insights, _ := json.Marshal(p.Insights)

	query := `
		INSERT INTO predictions (
			id, probability, risk_label, threshold, model_version,
			created_at, input, insights
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.Probability, p.RiskLabel, p.Threshold, p.ModelVersion,
		p.CreatedAt, string(input), string(insights),
	)
	return err
}

// GetPrediction retrieves a prediction by ID.
func (r *SQLRepository) GetPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	query := `
		SELECT id, probability, risk_label, threshold, model_version,
			   created_at, input, insights
		FROM predictions
		WHERE id = ?
	`

	var p domain.Prediction
	var input, insights string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&p.ID, &p.Probability, &p.RiskLabel, &p.Threshold, &p.ModelVersion,
		&p.CreatedAt, &input, &insights,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if input != "" {
		json.Unmarshal([]byte(input), &p.Input)
	}
	if insights != "" {
		json.Unmarshal([]byte(insights), &p.Insights)
	}

	return &p, nil
}

// SaveInsightRule stores an insight rule configuration, replacing any
// existing rule with the same ID.
func (r *SQLRepository) SaveInsightRule(ctx context.Context, rule *domain.InsightRule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO insight_rules (
			id, name, description, scope, expression, message, severity,
			rank, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			scope = excluded.scope,
			expression = excluded.expression,
			message = excluded.message,
			severity = excluded.severity,
			rank = excluded.rank,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Scope, rule.Expression,
		rule.Message, rule.Severity, rule.Rank, boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// ListInsightRules retrieves active insight rules, optionally filtered
// by scope, in rank order.
func (r *SQLRepository) ListInsightRules(ctx context.Context, scope string) ([]*domain.InsightRule, error) {
	query := `
		SELECT id, name, description, scope, expression, message,
			   severity, rank, enabled
		FROM insight_rules
		WHERE enabled = 1
	`
	var args []any
	if scope != "" {
		query += " AND scope = ?"
		args = append(args, scope)
	}
	query += " ORDER BY rank, id"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.InsightRule
	for rows.Next() {
		var rule domain.InsightRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Scope,
			&rule.Expression, &rule.Message, &rule.Severity,
			&rule.Rank, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteInsightRule soft-deletes a rule by setting enabled = 0.
func (r *SQLRepository) DeleteInsightRule(ctx context.Context, id string) error {
	query := `
		UPDATE insight_rules
		SET enabled = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// buildWhere translates an incident filter into SQL conditions with ?
// placeholders (rebound for postgres by the caller).
func buildWhere(filter *domain.IncidentFilter) (string, []any) {
	if filter == nil || filter.IsEmpty() {
		return "", nil
	}

	var conds []string
	var args []any

	if !filter.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, filter.To)
	}

	addIn := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		ph := make([]string, len(vals))
		for i, v := range vals {
			ph[i] = "?"
			args = append(args, v)
		}
		conds = append(conds, fmt.Sprintf("%s IN (%s)", col, strings.Join(ph, ", ")))
	}

	addIn("region", filter.Regions)
	addIn("channel", filter.Channels)
	addIn("severity_level", filter.Severities)
	addIn("category", filter.Categories)
	addIn("subsystem", filter.Subsystems)

	if filter.SLABreached != nil {
		conds = append(conds, "sla_breached = ?")
		args = append(args, boolToInt(*filter.SLABreached))
	}

	return strings.Join(conds, " AND "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
