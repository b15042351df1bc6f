package middleware

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eventgraph/internal/gqlrequest"
	"eventgraph/internal/logging"
	"eventgraph/internal/observability"
)

const graphQLTracerName = "eventgraph/graphql"

// GraphQLRequestMiddleware analyzes the GraphQL request once, stores the
// result in the context for later middleware and resolvers, and wraps
// execution in a graphql.execute span.
func GraphQLRequestMiddleware() func(http.Handler) http.Handler {
	tracer := otel.Tracer(graphQLTracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			if analysis.Envelope.Query == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx, span := tracer.Start(ctx, "graphql.execute", trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			fields := observability.GraphQLLogFields(ctx, analysis)
			if sc := span.SpanContext(); sc.IsValid() {
				fields = append(fields, slog.String("span_id", sc.SpanID().String()))
			}
			if len(fields) > 0 {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(fields...))
			}

			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(analysis)...)
				if err := analysis.Err(); err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, "invalid GraphQL request")
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
