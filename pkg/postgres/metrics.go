package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/deepworx/mealplan/pkg/postgres"

var (
	stateIdle = metric.WithAttributes(attribute.String("state", "idle"))
	stateUsed = metric.WithAttributes(attribute.String("state", "used"))
)

// registerMetrics exposes pool statistics as observable gauges.
// All gauges are read from a single pool.Stat() snapshot per collection.
func registerMetrics(pool *pgxpool.Pool) error {
	meter := otel.Meter(meterName)

	conns, err := meter.Int64ObservableGauge(
		"db.client.connection.count",
		metric.WithDescription("Connections in the meal store pool by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("register connection count metric: %w", err)
	}

	maxConns, err := meter.Int64ObservableGauge(
		"db.client.connection.max",
		metric.WithDescription("Maximum configured connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("register connection max metric: %w", err)
	}

	waits, err := meter.Int64ObservableCounter(
		"db.client.connection.waits",
		metric.WithDescription("Acquires that had to wait for a free connection"),
		metric.WithUnit("{acquire}"),
	)
	if err != nil {
		return fmt.Errorf("register connection waits metric: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(conns, int64(stat.IdleConns()), stateIdle)
		o.ObserveInt64(conns, int64(stat.AcquiredConns()), stateUsed)
		o.ObserveInt64(maxConns, int64(stat.MaxConns()))
		o.ObserveInt64(waits, stat.EmptyAcquireCount())
		return nil
	}, conns, maxConns, waits)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}

	return nil
}
