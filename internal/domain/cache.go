package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching computed aggregate snapshots
// and small counters. Supports two-phase caching: local LRU
// (Community) + Redis (Pro). The underlying dataset is immutable, so
// entries only ever expire by TTL.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetSnapshot retrieves a cached aggregate snapshot by filter hash.
	GetSnapshot(ctx context.Context, filterHash string) (*AggregateSnapshot, error)

	// SetSnapshot caches an aggregate snapshot by filter hash.
	SetSnapshot(ctx context.Context, filterHash string, snap *AggregateSnapshot, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns
	// the new value. Used for per-window request counters in /stats.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
