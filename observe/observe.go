package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/opguard/observe/exporters"
)

// Config selects the telemetry backends for an Observer. An exporter named
// "none" or left empty disables that signal.
type Config struct {
	ServiceName string
	Version     string

	TracingExporter string  // otlp|stdout|none
	SampleRatio     float64 // 0.0-1.0, fraction of executions traced
	MetricsExporter string  // otlp|prometheus|stdout|none

	LogLevel  string    // debug|info|warn|error
	LogOutput io.Writer // defaults to os.Stderr

	// Registerer receives the prometheus collector. Nil means the global
	// default registry.
	Registerer promclient.Registerer
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if !slices.Contains(ValidTracingExporters, c.TracingExporter) {
		return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.TracingExporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("%w, got: %f", ErrInvalidSampleRatio, c.SampleRatio)
	}
	if !slices.Contains(ValidMetricsExporters, c.MetricsExporter) {
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.MetricsExporter)
	}
	if !slices.Contains(ValidLogLevels, c.LogLevel) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// Observer owns the tracer and meter providers of one process and the
// logger built for it.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: Shutdown joins the errors of every provider.
type Observer struct {
	tracer  trace.Tracer
	meter   metric.Meter
	logger  Logger
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	service string
}

// NewObserver validates cfg and builds the configured providers. Enabled
// providers are also installed as the otel globals.
func NewObserver(ctx context.Context, cfg Config) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	out := cfg.LogOutput
	if out == nil {
		out = os.Stderr
	}
	obs := &Observer{
		tracer:  tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:   noop.NewMeterProvider().Meter(cfg.ServiceName),
		logger:  NewLoggerWithWriter(cfg.LogLevel, out),
		service: cfg.ServiceName,
	}

	if enabled(cfg.TracingExporter) {
		if err := obs.startTracing(ctx, cfg, res); err != nil {
			return nil, err
		}
	}
	if enabled(cfg.MetricsExporter) {
		if err := obs.startMetrics(ctx, cfg, res); err != nil {
			_ = obs.Shutdown(ctx)
			return nil, err
		}
	}
	return obs, nil
}

func (o *Observer) startTracing(ctx context.Context, cfg Config, res *resource.Resource) error {
	exp, err := exporters.NewTracingExporter(ctx, cfg.TracingExporter)
	if err != nil {
		return fmt.Errorf("observe: tracing: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	switch cfg.SampleRatio {
	case 0:
		sampler = sdktrace.NeverSample()
	case 1:
		sampler = sdktrace.AlwaysSample()
	}

	o.tp = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(o.tp)
	o.tracer = o.tp.Tracer(o.service)
	return nil
}

func (o *Observer) startMetrics(ctx context.Context, cfg Config, res *resource.Resource) error {
	var opts []exporters.Option
	if cfg.Registerer != nil {
		opts = append(opts, exporters.WithRegisterer(cfg.Registerer))
	}
	reader, err := exporters.NewMetricsReader(ctx, cfg.MetricsExporter, opts...)
	if err != nil {
		return fmt.Errorf("observe: metrics: %w", err)
	}

	o.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(o.mp)
	o.meter = o.mp.Meter(o.service)
	return nil
}

// Tracer returns the configured tracer, or a no-op tracer.
func (o *Observer) Tracer() trace.Tracer { return o.tracer }

// Meter returns the configured meter, or a no-op meter.
func (o *Observer) Meter() metric.Meter { return o.meter }

// Logger returns the process logger.
func (o *Observer) Logger() Logger { return o.logger }

// Shutdown flushes and stops the providers.
func (o *Observer) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tp != nil {
		if err := o.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if o.mp != nil {
		if err := o.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
