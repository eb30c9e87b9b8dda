package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta describes one guarded execution for telemetry purposes.
type OpMeta struct {
	Key         string // Resource key the execution is serialized on (required)
	ExecutionID string // Unique id of this call (optional)
	Operation   string // Logical operation name, e.g. "delete_record" (optional)
}

// SpanName returns the deterministic span name for this execution.
// Format: opguard.execute.<operation> or opguard.execute
func (m OpMeta) SpanName() string {
	if m.Operation != "" {
		return "opguard.execute." + m.Operation
	}
	return "opguard.execute"
}

// Fields returns the log fields identifying this execution.
func (m OpMeta) Fields() []Field {
	fields := []Field{String("resource_key", m.Key)}
	if m.ExecutionID != "" {
		fields = append(fields, String("execution_id", m.ExecutionID))
	}
	if m.Operation != "" {
		fields = append(fields, String("operation", m.Operation))
	}
	return fields
}

// Tracer wraps OpenTelemetry tracing with execution-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a guarded execution.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome kind and any error.
	EndSpan(span trace.Span, kind string, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("opguard.resource_key", meta.Key),
	}
	if meta.ExecutionID != "" {
		attrs = append(attrs, attribute.String("opguard.execution_id", meta.ExecutionID))
	}
	if meta.Operation != "" {
		attrs = append(attrs, attribute.String("opguard.operation", meta.Operation))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan marks the span as errored for every outcome except success.
func (t *tracerImpl) EndSpan(span trace.Span, kind string, err error) {
	span.SetAttributes(attribute.String("opguard.outcome", kind))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ string, _ error) {
	span.End()
}
