package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rawblock/txscan-engine/internal/orchestrator"

// NewTracerProvider builds an SDK tracer provider tagged with the
// service name, using whatever span processor/exporter the caller
// wires in (an OTLP exporter in production, none in tests). Passing no
// processors yields a provider that still creates valid, no-op-exported
// spans — safe to wire unconditionally.
func NewTracerProvider(serviceName string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)
	allOpts := append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)
	return sdktrace.NewTracerProvider(allOpts...)
}

// Tracer returns the pipeline's named tracer off the given provider.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(tracerName)
}

// StartScanSpan opens the root span for one scan request.
func StartScanSpan(ctx context.Context, tracer trace.Tracer, scanID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "scan", trace.WithAttributes(
		attribute.String("scan.id", scanID),
	))
}

// StartComponentSpan opens a child span for one analyzer branch of the
// fan-out; callers must End() it when the branch returns.
func StartComponentSpan(ctx context.Context, tracer trace.Tracer, component string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "analyzer."+component, trace.WithAttributes(
		attribute.String("analyzer.name", component),
	))
}
