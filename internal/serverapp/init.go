package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"eventgraph/internal/resolver"
)

// Init initializes all runtime resources. It is idempotent. On failure every
// resource acquired so far is released and the app stays uninitialized.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, graphqlMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	a.logger.Info("connecting to database",
		slog.String("driver", a.dialect.DriverName()),
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.Port),
		slog.String("database_effective", a.effectiveDatabase),
		slog.String("database_source", a.databaseSource),
		slog.Bool("dsn_present", a.dsnPresent),
	)

	db, dbStatsReg, err := connectDB(a.cfg, a.logger, a.dialect)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	cleanup.push("database", func(_ context.Context) error {
		if dbStatsReg != nil {
			if err := dbStatsReg.Unregister(); err != nil {
				a.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	})

	if err := waitForDatabase(ctx, a.cfg.Database, a.logger, db); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.logger.Info("connected to database", slog.String("database_effective", a.effectiveDatabase))

	pool, poolMetrics, err := newPool(a.cfg.Database, a.logger, db, meterProvider != nil)
	if err != nil {
		return fmt.Errorf("failed to create session pool: %w", err)
	}
	if poolMetrics != nil {
		cleanup.push("pool metrics", func(_ context.Context) error {
			return poolMetrics.Shutdown()
		})
	}
	cleanup.push("session pool", drainPool(a.logger, pool))

	res, err := resolver.NewResolver(resolver.Config{
		Pool:    pool,
		Dialect: a.dialect,
		Logger:  a.logger.WithFields(slog.String("component", "resolver")),
		Metrics: graphqlMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}
	schema, err := res.BuildGraphQLSchema()
	if err != nil {
		return fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	graphqlHandler := buildGraphQLHandler(a.cfg, a.logger, &schema, graphqlMetrics)
	mux := buildRouter(a.cfg, a.logger, pool, graphqlHandler, meterProvider)
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := listenAddress(a.cfg.Server)
	srv := buildServer(a.cfg.Server, handler, serverAddr)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.graphqlMetrics = graphqlMetrics
	a.poolMetrics = poolMetrics
	a.tracerProvider = tracerProvider
	a.pool = pool
	a.resolver = res
	a.mux = mux
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
