package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/light-letter/lightletter/internal/config"
	"github.com/light-letter/lightletter/internal/errors"
)

// Tracing exporters accepted by [telemetry] tracing.
const (
	ExporterNone   = ""
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const defaultServiceName = "lightletter"

// Provider owns the process tracer provider. A disabled Provider leaves
// the global no-op provider in place.
type Provider struct {
	provider *sdktrace.TracerProvider
}

// TracingOption configures SetupTracing.
type TracingOption func(*tracingOptions)

type tracingOptions struct {
	stdout io.Writer
}

// WithStdoutWriter redirects the stdout exporter.
func WithStdoutWriter(w io.Writer) TracingOption {
	return func(o *tracingOptions) {
		o.stdout = w
	}
}

// SetupTracing installs the tracer provider selected by cfg as the otel
// global.
func SetupTracing(ctx context.Context, cfg config.TelemetryConfig, opts ...TracingOption) (*Provider, error) {
	o := tracingOptions{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Tracing {
	case ExporterNone:
		return &Provider{}, nil
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(o.stdout))
	case ExporterOTLP:
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, errors.New(errors.CodeTelemetry).
			WithSubject(cfg.Tracing).
			WithDetail(`telemetry.tracing must be "", "stdout" or "otlp".`)
	}
	if err != nil {
		return nil, errors.New(errors.CodeTelemetry).WithSubject(cfg.Tracing).Wrap(err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	// Schemaless avoids schema URL conflicts with resource.Default().
	res := resource.NewSchemaless(attribute.String("service.name", name))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return &Provider{provider: tp}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.provider != nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}
