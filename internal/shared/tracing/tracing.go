package tracing

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"studyhub-backend/internal/shared/telemetry"
)

const ServiceName = "studyhub-api"

// Init installs a global tracer provider exporting spans to stdout. When
// disabled it returns a no-op shutdown and leaves the default provider.
func Init(ctx context.Context, enabled bool, env string) func(context.Context) error {
	if !enabled {
		return func(context.Context) error { return nil }
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", ServiceName),
		attribute.String("deployment.environment", strings.TrimSpace(env)),
	))
	if err != nil {
		telemetry.Warn("otel.resource_failed", map[string]any{"error": err.Error()})
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		telemetry.Warn("otel.exporter_failed", map[string]any{"error": err.Error()})
		return func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	telemetry.Info("otel.initialized", map[string]any{"service": ServiceName})
	return tp.Shutdown
}

// Start opens a span on the global tracer.
func Start(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := otel.Tracer(ServiceName).Start(ctx, name)
	return ctx, func() { span.End() }
}
