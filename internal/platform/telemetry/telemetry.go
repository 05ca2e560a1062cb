// Package telemetry wires OpenTelemetry tracing for the orchestrator.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds the tracer used to instrument orchestrator operations.
type Telemetry struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// Config configures tracing.
type Config struct {
	ServiceName    string
	JaegerEndpoint string
	TracingEnabled bool
}

// New creates a new Telemetry instance. When TracingEnabled is false the
// returned Telemetry uses a no-op tracer so instrumented code needs no
// conditional branches.
func New(cfg Config) (*Telemetry, error) {
	t := &Telemetry{tracer: trace.NewNoopTracerProvider().Tracer(cfg.ServiceName)}

	if !cfg.TracingEnabled {
		return t, nil
	}

	provider, err := initTracer(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	t.provider = provider
	t.tracer = otel.Tracer(cfg.ServiceName)

	return t, nil
}

func initTracer(serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(
			jaeger.WithEndpoint(endpoint),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// Tracer returns the underlying tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// StartSpan opens a span for an orchestrator operation (submit, run,
// run_parallel) and returns the derived context alongside the span.
func (t *Telemetry) StartSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, operation)
}

// Close shuts down the tracer provider, flushing any pending spans.
func (t *Telemetry) Close() error {
	if t.provider != nil {
		return t.provider.Shutdown(context.Background())
	}
	return nil
}
