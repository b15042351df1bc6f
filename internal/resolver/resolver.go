// Package resolver dispatches the top-level GraphQL fields to the planner,
// the session pool and the row mapper. Each list field issues exactly one
// statement and either returns the whole list or fails.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"eventgraph/internal/dbexec"
	"eventgraph/internal/logging"
	"eventgraph/internal/model"
	"eventgraph/internal/observability"
	"eventgraph/internal/planner"
	"eventgraph/internal/rowmap"
	"eventgraph/internal/sqlutil"

	"go.opentelemetry.io/otel/attribute"
)

// APIVersion is reported by the apiVersion query field.
const APIVersion = "1.0"

const (
	fieldSeries = "series"
	fieldEvent  = "event"
)

// SessionPool is the subset of *dbexec.Pool the resolver needs.
type SessionPool interface {
	Acquire(ctx context.Context) (*dbexec.Lease, error)
	Release(lease *dbexec.Lease)
	Execute(ctx context.Context, lease *dbexec.Lease, query string, args ...interface{}) (*dbexec.RowStream, error)
}

// Config wires a Resolver.
type Config struct {
	Pool    SessionPool
	Dialect sqlutil.Dialect
	Logger  *logging.Logger
	Metrics *observability.GraphQLMetrics
}

// Resolver serves the apiVersion, series and event fields.
type Resolver struct {
	pool    SessionPool
	dialect sqlutil.Dialect
	logger  *logging.Logger
	metrics *observability.GraphQLMetrics
}

// NewResolver creates a resolver over the given pool.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Pool == nil {
		return nil, errors.New("resolver requires a session pool")
	}
	dialect := cfg.Dialect
	if dialect == "" {
		dialect = sqlutil.DialectPostgres
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	return &Resolver{
		pool:    cfg.Pool,
		dialect: dialect,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// APIVersion returns the constant API version. It never touches the database.
func (r *Resolver) APIVersion() string {
	return APIVersion
}

// ResolveSeriesList returns every series ordered by id.
func (r *Resolver) ResolveSeriesList(ctx context.Context, tree *planner.FieldTree) ([]model.Series, error) {
	plan, err := planner.PlanSeriesQuery(tree, planner.WithDialect(r.dialect))
	if err != nil {
		return nil, &Error{Kind: KindInternal, Field: fieldSeries, Reason: err.Error(), Err: err}
	}
	return resolveList(ctx, r, fieldSeries, plan, func(s *dbexec.RowStream) (model.Series, error) {
		if plan.Fallback {
			return rowmap.ScanSeriesIdentifier(s)
		}
		return rowmap.ScanSeries(s)
	})
}

// ResolveEventList returns every event ordered by id. The related series is
// read from the same statement when partOf is requested.
func (r *Resolver) ResolveEventList(ctx context.Context, tree *planner.FieldTree) ([]model.Event, error) {
	plan, err := planner.PlanEventQuery(tree, planner.WithDialect(r.dialect))
	if err != nil {
		return nil, &Error{Kind: KindInternal, Field: fieldEvent, Reason: err.Error(), Err: err}
	}
	return resolveList(ctx, r, fieldEvent, plan, func(s *dbexec.RowStream) (model.Event, error) {
		if plan.Fallback {
			return rowmap.ScanEventIdentifier(s)
		}
		return rowmap.ScanEvent(s, plan.IncludeRelation)
	})
}

func resolveList[T any](ctx context.Context, r *Resolver, field string, plan *planner.Plan, scan func(*dbexec.RowStream) (T, error)) ([]T, error) {
	start := time.Now()
	ctx, span := startResolverSpan(ctx, "graphql.resolve."+field,
		attribute.String("graphql.field.name", field),
		attribute.String("db.query.variant", string(plan.Variant)),
	)
	defer span.End()

	logger := r.requestLogger(ctx).WithFields(
		slog.String("field", field),
		slog.String("variant", string(plan.Variant)),
	)
	if plan.Fallback {
		logger.Warn("no recognized fields requested, selecting identifiers only",
			slog.String("kind", "unplannable_request"),
			slog.String("error", planner.ErrUnplannableRequest.Error()),
		)
		r.metrics.RecordPlanFallback(ctx, field)
	}
	logger.Debug("planned query", slog.String("sql", plan.Query.SQL))

	items, err := runPlan(ctx, r.pool, field, plan, scan)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
		var re *Error
		if errors.As(err, &re) {
			outcome = string(re.Kind)
		}
		logger.Error("field resolution failed",
			slog.String("kind", outcome),
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed),
		)
	} else {
		logger.Debug("field resolved",
			slog.Int("rows", len(items)),
			slog.Duration("duration", elapsed),
		)
	}
	r.metrics.RecordResolve(ctx, field, string(plan.Variant), outcome, elapsed, len(items))
	finishResolverSpan(span, err, outcome)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// runPlan holds a lease for exactly the lifetime of one statement.
func runPlan[T any](ctx context.Context, pool SessionPool, field string, plan *planner.Plan, scan func(*dbexec.RowStream) (T, error)) ([]T, error) {
	lease, err := pool.Acquire(ctx)
	if err != nil {
		return nil, upstreamUnavailable(field, err)
	}
	defer pool.Release(lease)

	stream, err := pool.Execute(ctx, lease, plan.Query.SQL, plan.Query.Args...)
	if err != nil {
		return nil, queryFailed(field, err)
	}
	defer stream.Close()

	cols, err := stream.Columns()
	if err != nil {
		return nil, queryFailed(field, err)
	}
	if err := rowmap.CheckColumns(plan.Columns, cols); err != nil {
		return nil, malformedRow(field, err)
	}

	items := make([]T, 0)
	for stream.Next() {
		item, err := scan(stream)
		if err != nil {
			return nil, malformedRow(field, err)
		}
		items = append(items, item)
	}
	if err := stream.Err(); err != nil {
		return nil, queryFailed(field, err)
	}
	if err := stream.Close(); err != nil {
		return nil, queryFailed(field, err)
	}
	return items, nil
}

func (r *Resolver) requestLogger(ctx context.Context) *logging.Logger {
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		return r.logger.WithRequestID(requestID)
	}
	return r.logger
}
