package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventgraph/internal/dbexec"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PoolMetrics reports lease occupancy and acquire latency for the session pool.
type PoolMetrics struct {
	acquireWait     metric.Float64Histogram
	acquireFailures metric.Int64Counter
	registration    metric.Registration
}

// InitPoolMetrics creates the pool instruments. stats is polled on every collection.
func InitPoolMetrics(stats func() dbexec.PoolStats) (*PoolMetrics, error) {
	meter := otel.Meter(meterName + "/pool")

	acquireWait, err := meter.Float64Histogram(
		"eventgraph.pool.acquire.wait",
		metric.WithDescription("Time spent waiting for a pooled session"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acquire wait histogram: %w", err)
	}

	acquireFailures, err := meter.Int64Counter(
		"eventgraph.pool.acquire.failures.total",
		metric.WithDescription("Acquire attempts that did not produce a lease"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acquire failure counter: %w", err)
	}

	capacity, err := meter.Int64ObservableGauge(
		"eventgraph.pool.capacity",
		metric.WithDescription("Configured number of pooled sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool capacity gauge: %w", err)
	}
	leased, err := meter.Int64ObservableGauge(
		"eventgraph.pool.leased",
		metric.WithDescription("Sessions currently leased"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool leased gauge: %w", err)
	}
	idle, err := meter.Int64ObservableGauge(
		"eventgraph.pool.idle",
		metric.WithDescription("Sessions currently available"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool idle gauge: %w", err)
	}

	m := &PoolMetrics{acquireWait: acquireWait, acquireFailures: acquireFailures}
	if stats != nil {
		m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			s := stats()
			o.ObserveInt64(capacity, s.Capacity)
			o.ObserveInt64(leased, s.Leased)
			o.ObserveInt64(idle, s.Idle)
			return nil
		}, capacity, leased, idle)
		if err != nil {
			return nil, fmt.Errorf("failed to register pool gauges: %w", err)
		}
	}
	return m, nil
}

// ObserveAcquire matches dbexec.PoolConfig.OnAcquire.
func (m *PoolMetrics) ObserveAcquire(ctx context.Context, wait time.Duration, err error) {
	if m == nil {
		return
	}
	m.acquireWait.Record(ctx, float64(wait.Microseconds())/1000)
	if err == nil {
		return
	}
	reason := "error"
	switch {
	case errors.Is(err, dbexec.ErrPoolExhausted):
		reason = "exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "cancelled"
	}
	m.acquireFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Shutdown unregisters the gauge callback.
func (m *PoolMetrics) Shutdown() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
