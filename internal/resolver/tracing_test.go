package resolver

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"eventgraph/internal/dbexec"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestResolveEventList_EmitsTracingSpan(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	r, _, mock := newTestResolver(t, dbexec.PoolConfig{})
	expectQuery(mock, eventJoinSQL, scenarioEventRows())

	_, err := r.ResolveEventList(context.Background(), tree("event", tree("partOf", tree("id"))))
	require.NoError(t, err)

	span := findEndedSpanByName(recorder.Ended(), "graphql.resolve.event")
	require.NotNil(t, span)
	assertSpanAttr(t, span.Attributes(), "db.query.variant", "join")
	assertSpanAttr(t, span.Attributes(), "graphql.resolver.outcome", "success")
}

func TestResolveSeriesList_SpanRecordsError(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	r, _, mock := newTestResolver(t, dbexec.PoolConfig{})
	mock.ExpectQuery(regexp.QuoteMeta(seriesSQL)).WillReturnError(errors.New("boom"))

	_, err := r.ResolveSeriesList(context.Background(), tree("series", tree("id")))
	require.Error(t, err)

	span := findEndedSpanByName(recorder.Ended(), "graphql.resolve.series")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	assertSpanAttr(t, span.Attributes(), "graphql.resolver.outcome", string(KindQueryFailed))
}

func TestFinishResolverSpan_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() { finishResolverSpan(nil, errors.New("x"), "error") })
}

func TestResolveEventList_SpanCarriesErrorKind(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	r, _, mock := newTestResolver(t, dbexec.PoolConfig{})
	expectQuery(mock, eventBaseSQL, sqlmock.NewRows([]string{"event_id", "event_title"}).AddRow(10, nil))

	_, err := r.ResolveEventList(context.Background(), tree("event", tree("title")))
	require.Error(t, err)

	span := findEndedSpanByName(recorder.Ended(), "graphql.resolve.event")
	require.NotNil(t, span)
	assertSpanAttr(t, span.Attributes(), "graphql.resolver.outcome", string(KindMalformedRow))
}

func installResolverSpanRecorder(t *testing.T) (*tracetest.SpanRecorder, func()) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)

	oldProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	return recorder, func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(oldProvider)
	}
}

func findEndedSpanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func assertSpanAttr(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			assert.Equal(t, want, attr.Value.AsString())
			return
		}
	}
	t.Fatalf("span attribute %s not found", key)
}
