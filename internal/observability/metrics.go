package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "eventgraph"

// GraphQLMetrics holds custom metrics for GraphQL operations and field resolution.
// A nil *GraphQLMetrics is valid and records nothing.
type GraphQLMetrics struct {
	requestDuration  metric.Float64Histogram
	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	activeRequests   metric.Int64UpDownCounter
	queryDepth       metric.Int64Histogram
	resolverDuration metric.Float64Histogram
	resolverRows     metric.Int64Histogram
	planFallbacks    metric.Int64Counter
}

// InitGraphQLMetrics initializes GraphQL-specific metrics
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	queryDepth, err := meter.Int64Histogram(
		"graphql.query.depth",
		metric.WithDescription("Depth of GraphQL queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}

	resolverDuration, err := meter.Float64Histogram(
		"eventgraph.resolver.duration",
		metric.WithDescription("Time spent resolving a top-level list field, from plan to mapped result"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver duration histogram: %w", err)
	}

	resolverRows, err := meter.Int64Histogram(
		"eventgraph.resolver.rows",
		metric.WithDescription("Number of rows mapped per top-level list field"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver rows histogram: %w", err)
	}

	planFallbacks, err := meter.Int64Counter(
		"eventgraph.planner.fallbacks",
		metric.WithDescription("Number of requests planned as identifiers-only because no field was recognized"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner fallback counter: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration:  requestDuration,
		requestCounter:   requestCounter,
		errorCounter:     errorCounter,
		activeRequests:   activeRequests,
		queryDepth:       queryDepth,
		resolverDuration: resolverDuration,
		resolverRows:     resolverRows,
		planFallbacks:    planFallbacks,
	}, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	}

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// RecordQueryDepth records the depth of a GraphQL query
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	if m == nil {
		return
	}
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordResolve records one top-level field resolution.
func (m *GraphQLMetrics) RecordResolve(ctx context.Context, field, variant, outcome string, duration time.Duration, rows int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("field", field),
		attribute.String("variant", variant),
		attribute.String("outcome", outcome),
	)
	m.resolverDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.resolverRows.Record(ctx, int64(rows), attrs)
}

// RecordPlanFallback counts an identifiers-only plan.
func (m *GraphQLMetrics) RecordPlanFallback(ctx context.Context, field string) {
	if m == nil {
		return
	}
	m.planFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the GraphQLMetrics instance
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
