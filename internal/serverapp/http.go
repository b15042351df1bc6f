package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"eventgraph/internal/config"
	"eventgraph/internal/logging"
	"eventgraph/internal/middleware"
	"eventgraph/internal/observability"
)

const (
	graphqlPath = "/graphql"
	healthPath  = "/health"
	metricsPath = "/metrics"
)

// buildGraphQLHandler serves the schema over HTTP and wraps it in the
// per-request GraphQL middleware: request analysis and tracing outside,
// metrics inside.
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, schema *graphql.Schema, metrics *observability.GraphQLMetrics) http.Handler {
	var h http.Handler = handler.New(&handler.Config{
		Schema:     schema,
		Pretty:     true,
		GraphiQL:   cfg.Server.GraphiQLEnabled,
		Playground: false,
	})

	if metrics != nil {
		h = middleware.GraphQLMetricsMiddleware(metrics)(h)
		logger.Info("GraphQL metrics middleware enabled")
	}
	return middleware.GraphQLRequestMiddleware()(h)
}

// buildRouter maps the public endpoints. Anything else is a 404.
func buildRouter(cfg *config.Config, logger *logging.Logger, db pinger, graphqlHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(graphqlPath, graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, graphqlPath, http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc(healthPath, healthHandler(db, cfg.Server.HealthCheckTimeout))

	if meterProvider != nil {
		mux.Handle(metricsPath, promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", metricsPath))
	}
	return mux
}

// wrapHTTPHandler applies the outer chain. From the outside in: otelhttp,
// CORS, rate limiting, then request logging.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, h http.Handler) http.Handler {
	h = middleware.LoggingMiddleware(logger)(h)

	if cfg.Server.RateLimit.Enabled {
		h = middleware.RateLimitMiddleware(cfg.Server.RateLimit)(h)
		logger.Info("rate limiting enabled",
			slog.Float64("rps", cfg.Server.RateLimit.RPS),
			slog.Int("burst", cfg.Server.RateLimit.Burst),
		)
	}

	if cfg.Server.CORS.Enabled {
		h = middleware.CORSMiddleware(cfg.Server.CORS)(h)
	}

	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		h = otelhttp.NewHandler(h, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}
	return h
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", graphqlPath, healthPath, metricsPath:
		return rawPath
	default:
		return "/*"
	}
}

func listenAddress(cfg config.ServerConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

func buildServer(cfg config.ServerConfig, h http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// startServer binds the listener synchronously so bind errors surface to the
// caller, then serves in a goroutine. Serve errors arrive on the channel.
func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server) (chan error, error) {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	logAttrs := []any{
		slog.String("address", ln.Addr().String()),
		slog.String("graphql_endpoint", graphqlPath),
		slog.String("health_endpoint", healthPath),
		slog.Bool("graphiql", cfg.Server.GraphiQLEnabled),
		slog.Int("pool_capacity", cfg.Database.Pool.Capacity),
		slog.String("log_level", cfg.Observability.Logging.Level),
	}
	if cfg.Observability.MetricsEnabled {
		logAttrs = append(logAttrs, slog.String("metrics_endpoint", metricsPath))
	}
	logger.Info("server starting", logAttrs...)

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	return serverErrors, nil
}

// healthHandler reports whether the database answers a ping.
func healthHandler(db pinger, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
