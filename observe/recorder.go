package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Recorder reports guarded executions to tracing, metrics and logs.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: recording is best-effort and never alters the outcome.
type Recorder struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewRecorder creates a Recorder. Nil components are replaced by no-ops.
func NewRecorder(tracer Tracer, metrics Metrics, logger Logger) *Recorder {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = &noopLogger{}
	}
	return &Recorder{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopRecorder returns a Recorder that discards everything.
func NopRecorder() *Recorder {
	return NewRecorder(nil, nil, nil)
}

// RecorderFromObserver creates a Recorder from an Observer.
func RecorderFromObserver(obs *Observer) (*Recorder, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewRecorder(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the recorder's logger.
func (r *Recorder) Logger() Logger {
	return r.logger
}

// Start opens the span for one execution.
func (r *Recorder) Start(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return r.tracer.StartSpan(ctx, meta)
}

// Finish closes the span and records the outcome kind. err is the outcome's
// error view and is nil for successes.
func (r *Recorder) Finish(ctx context.Context, span trace.Span, meta OpMeta, kind string, elapsed time.Duration, err error) {
	r.tracer.EndSpan(span, kind, err)
	r.metrics.RecordExecution(ctx, meta, kind, elapsed)

	fields := append(meta.Fields(),
		String("outcome", kind),
		Field{Key: "elapsed_ms", Value: float64(elapsed) / float64(time.Millisecond)},
	)
	if err != nil {
		fields = append(fields, Err(err))
	}

	switch kind {
	case "success":
		r.logger.Info(ctx, "guarded execution completed", fields...)
	case "failure":
		r.logger.Error(ctx, "guarded execution failed", fields...)
	default:
		r.logger.Warn(ctx, "guarded execution interrupted", fields...)
	}
}

// Transition records a connection state change.
func (r *Recorder) Transition(ctx context.Context, from, to string) {
	r.metrics.RecordTransition(ctx, from, to)
	r.logger.Info(ctx, "connection state changed", String("from", from), String("to", to))
}

// LateCompletion records an operation that returned after its caller was
// told it timed out. Its side effects may have landed.
func (r *Recorder) LateCompletion(ctx context.Context, meta OpMeta, err error) {
	r.metrics.RecordLateCompletion(ctx, meta)

	fields := meta.Fields()
	if err != nil {
		fields = append(fields, Err(err))
	}
	r.logger.Warn(ctx, "operation completed after timeout was reported", fields...)
}
