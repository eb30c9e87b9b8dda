package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records guarded execution metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one outcome with its elapsed time.
	RecordExecution(ctx context.Context, meta OpMeta, kind string, elapsed time.Duration)

	// RecordTransition records a connection state change.
	RecordTransition(ctx context.Context, from, to string)

	// RecordLateCompletion records an operation that returned after its
	// caller had already received a Timeout.
	RecordLateCompletion(ctx context.Context, meta OpMeta)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	transitions  metric.Int64Counter
	lateCount    metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"opguard.exec.total",
		metric.WithDescription("Total number of guarded executions by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"opguard.exec.duration_ms",
		metric.WithDescription("Guarded execution wall-clock time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"opguard.guard.transitions",
		metric.WithDescription("Connection state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	lateCount, err := meter.Int64Counter(
		"opguard.late_completions",
		metric.WithDescription("Operations that completed after reporting a timeout"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		durationHist: durationHist,
		transitions:  transitions,
		lateCount:    lateCount,
	}, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta OpMeta, kind string, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("outcome", kind),
	}
	if meta.Operation != "" {
		attrs = append(attrs, attribute.String("operation", meta.Operation))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(elapsed)/float64(time.Millisecond), opt)
}

func (m *metricsImpl) RecordTransition(ctx context.Context, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *metricsImpl) RecordLateCompletion(ctx context.Context, meta OpMeta) {
	var opts []metric.AddOption
	if meta.Operation != "" {
		opts = append(opts, metric.WithAttributes(attribute.String("operation", meta.Operation)))
	}
	m.lateCount.Add(ctx, 1, opts...)
}

type noopMetrics struct{}

func (noopMetrics) RecordExecution(context.Context, OpMeta, string, time.Duration) {}
func (noopMetrics) RecordTransition(context.Context, string, string)               {}
func (noopMetrics) RecordLateCompletion(context.Context, OpMeta)                   {}
