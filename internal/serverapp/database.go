package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"eventgraph/internal/config"
	"eventgraph/internal/dbexec"
	"eventgraph/internal/logging"
	"eventgraph/internal/observability"
	"eventgraph/internal/sqlutil"
)

const maxRetryInterval = 30 * time.Second

type statsRegistration interface{ Unregister() error }

func dbSystemAttribute(dialect sqlutil.Dialect) attribute.KeyValue {
	if dialect == sqlutil.DialectMySQL {
		return semconv.DBSystemMySQL
	}
	return semconv.DBSystemPostgreSQL
}

// connectDB opens the database handle, instrumenting it with otelsql when
// metrics or tracing is enabled. No connection is made yet.
func connectDB(cfg *config.Config, logger *logging.Logger, dialect sqlutil.Dialect) (*sqlx.DB, statsRegistration, error) {
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}

	driver := dialect.DriverName()
	dsn := cfg.Database.DSN()
	obs := cfg.Observability

	if !obs.MetricsEnabled && !obs.TracingEnabled {
		db, err := sqlx.Open(driver, dsn)
		if err != nil {
			return nil, nil, err
		}
		return db, nil, nil
	}

	system := dbSystemAttribute(dialect)
	opts := []otelsql.Option{otelsql.WithAttributes(system)}
	if obs.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{
			DisableErrSkip: true,
			OmitRows:       true,
		}))
	}

	sqlDB, err := otelsql.Open(driver, dsn, opts...)
	if err != nil {
		return nil, nil, err
	}

	var reg statsRegistration
	if obs.MetricsEnabled {
		reg, err = otelsql.RegisterDBStatsMetrics(sqlDB, otelsql.WithAttributes(system))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			reg = nil
		}
	}

	logger.Info("database instrumentation enabled",
		slog.String("driver", driver),
		slog.Bool("metrics", obs.MetricsEnabled),
		slog.Bool("tracing", obs.TracingEnabled),
	)
	return sqlx.NewDb(sqlDB, driver), reg, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// waitForDatabase pings until the database answers. A zero connection timeout
// tries once. Otherwise the retry interval doubles after each failure, capped
// at 30s, until the timeout elapses.
func waitForDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger, db pinger) error {
	timeout := cfg.ConnectionTimeout
	interval := cfg.ConnectionRetryInterval

	if timeout == 0 {
		return db.PingContext(ctx)
	}
	if interval <= 0 {
		interval = time.Second
	}

	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxRetryInterval)
	}
}

// newPool wraps db in the bounded session pool and, when metrics are
// enabled, registers the pool instruments.
func newPool(cfg config.DatabaseConfig, logger *logging.Logger, db *sqlx.DB, metricsEnabled bool) (*dbexec.Pool, *observability.PoolMetrics, error) {
	db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)

	var poolMetrics *observability.PoolMetrics
	poolCfg := dbexec.PoolConfig{
		Capacity:           cfg.Pool.Capacity,
		AcquireTimeout:     cfg.Pool.AcquireTimeout,
		HealthCheckOnError: cfg.Pool.HealthCheckOnError,
		Logger:             logger.WithFields(slog.String("component", "pool")),
	}
	if metricsEnabled {
		poolCfg.OnAcquire = func(ctx context.Context, wait time.Duration, err error) {
			poolMetrics.ObserveAcquire(ctx, wait, err)
		}
	}

	pool, err := dbexec.NewPool(db, poolCfg)
	if err != nil {
		return nil, nil, err
	}

	if metricsEnabled {
		poolMetrics, err = observability.InitPoolMetrics(pool.Stats)
		if err != nil {
			return nil, nil, err
		}
	}

	logger.Info("session pool ready",
		slog.Int("capacity", cfg.Pool.Capacity),
		slog.Duration("acquire_timeout", cfg.Pool.AcquireTimeout),
		slog.Duration("max_lifetime", cfg.Pool.MaxLifetime),
		slog.Bool("health_check_on_error", cfg.Pool.HealthCheckOnError),
	)
	return pool, poolMetrics, nil
}
