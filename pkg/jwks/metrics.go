package jwks

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/deepworx/mealplan/pkg/jwks"

const (
	outcomeOK        = "ok"
	outcomeNetwork   = "network_error"
	outcomeMalformed = "malformed_response"
)

type resolverMetrics struct {
	fetches metric.Int64Counter
	hits    metric.Int64Counter
}

func newResolverMetrics() (*resolverMetrics, error) {
	meter := otel.Meter(meterName)

	fetches, err := meter.Int64Counter(
		"jwks.fetch.requests",
		metric.WithDescription("Number of JWKS documents requested from the identity provider"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("register jwks.fetch.requests metric: %w", err)
	}

	hits, err := meter.Int64Counter(
		"jwks.cache.hits",
		metric.WithDescription("Number of key set lookups served from the cache"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("register jwks.cache.hits metric: %w", err)
	}

	return &resolverMetrics{fetches: fetches, hits: hits}, nil
}

func (m *resolverMetrics) recordFetch(ctx context.Context, outcome string) {
	m.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *resolverMetrics) recordHit(ctx context.Context) {
	m.hits.Add(ctx, 1)
}
