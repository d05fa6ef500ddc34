package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence: the incident
// dataset loaded at startup, prediction results, and insight rule
// configurations.
type Repository interface {
	// Incident dataset (write once at startup, read-only after)
	BulkInsertIncidents(ctx context.Context, incidents []*Incident) error
	CountIncidents(ctx context.Context) (int, error)
	ListIncidents(ctx context.Context, filter *IncidentFilter) ([]*Incident, error)
	DistinctValues(ctx context.Context, dimension string) ([]string, error)

	// Prediction results
	SavePrediction(ctx context.Context, p *Prediction) error
	GetPrediction(ctx context.Context, id string) (*Prediction, error)

	// Insight rule configurations
	SaveInsightRule(ctx context.Context, rule *InsightRule) error
	ListInsightRules(ctx context.Context, scope string) ([]*InsightRule, error)
	DeleteInsightRule(ctx context.Context, id string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
