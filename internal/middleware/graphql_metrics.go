package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"eventgraph/internal/gqlrequest"
	"eventgraph/internal/observability"
)

const unknownOperationType = "unknown"

// GraphQLMetricsMiddleware records request count, latency, error and depth
// metrics for POSTed GraphQL requests. It reuses the request analysis stored
// by GraphQLRequestMiddleware and analyzes the request itself otherwise.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// GraphiQL page loads are not GraphQL requests.
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			r = r.WithContext(ctx)

			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			start := time.Now()

			analysis := gqlrequest.AnalysisFromContext(ctx)
			if analysis == nil {
				analysis = gqlrequest.AnalyzeRequest(r)
			}
			operationType := unknownOperationType
			if analysis.Err() == nil && analysis.OperationType != "" {
				operationType = analysis.OperationType
				metrics.RecordQueryDepth(ctx, int64(analysis.Depth), operationType)
			}

			rec := newStatusRecorder(w, true)
			next.ServeHTTP(rec, r)

			hasErrors := rec.status >= 400 || responseHasGraphQLErrors(rec.body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), hasErrors, operationType)
		})
	}
}

// responseHasGraphQLErrors reports whether a response body carries a
// non-empty top-level errors array.
func responseHasGraphQLErrors(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}

	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
