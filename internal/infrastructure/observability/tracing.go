// Package observability installs the process-wide tracer provider.
//
// Call InitTracing once at the top of main and defer the returned shutdown:
//
//	shutdown, err := observability.InitTracing(ctx, "foodcoop-server", cfg.TracingStdout)
//	if err != nil { ... }
//	defer shutdown(context.Background())
package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ShutdownFunc flushes buffered spans.
type ShutdownFunc func(ctx context.Context) error

// InitTracing registers the global TracerProvider and W3C propagators.
// With stdout enabled spans are pretty-printed to stdout; otherwise spans
// are created but never exported.
func InitTracing(ctx context.Context, serviceName string, stdout bool) (ShutdownFunc, error) {
	return initTracing(ctx, serviceName, stdout, os.Stdout)
}

func initTracing(_ context.Context, serviceName string, stdout bool, w io.Writer) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !stdout {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}
