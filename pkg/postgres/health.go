package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepworx/mealplan/pkg/slogutil"
)

// HealthChecker reports whether the meal store is reachable.
// Implements grpchealth.HealthChecker.
type HealthChecker struct {
	pool *pgxpool.Pool
}

// NewHealthChecker creates a health checker for the given pool.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool}
}

// Check pings the database. A nil pool is reported as unhealthy.
func (c *HealthChecker) Check(ctx context.Context) bool {
	if c.pool == nil {
		return false
	}
	if err := Ping(ctx, c.pool); err != nil {
		slog.DebugContext(ctx, "postgres health check failed", slogutil.Err(err))
		return false
	}
	return true
}
