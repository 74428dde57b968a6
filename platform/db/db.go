// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"time"

	"fleetcrm_backend/platform/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a new database connection pool with production-ready settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDatabaseURL())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PoolAdapter adapts a pgxpool.Pool to the health-check interface used by
// the HTTP layer.
type PoolAdapter struct {
	pool *pgxpool.Pool
}

// NewPoolAdapter wraps the pool for readiness checks.
func NewPoolAdapter(pool *pgxpool.Pool) *PoolAdapter {
	return &PoolAdapter{pool: pool}
}

// Ping checks database connectivity.
func (a *PoolAdapter) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}
