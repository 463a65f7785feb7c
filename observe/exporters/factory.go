// Package exporters provides factory functions for creating OpenTelemetry exporters.
package exporters

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Target selects an exporter and where it sends data.
type Target struct {
	// Name is one of stdout, otlp, jaeger, prometheus (metrics only) or none.
	Name string

	// Endpoint is the collector host:port for otlp/jaeger. When empty the
	// standard OTEL_EXPORTER_OTLP_* environment variables must be set.
	Endpoint string

	// Insecure disables TLS for the collector connection.
	Insecure bool

	// Writer receives stdout exporter output. Default: os.Stdout.
	Writer io.Writer
}

func (t Target) writer() io.Writer {
	if t.Writer != nil {
		return t.Writer
	}
	return os.Stdout
}

func (t Target) endpoint(signalEnv string) string {
	if t.Endpoint != "" {
		return t.Endpoint
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		return v
	}
	return os.Getenv(signalEnv)
}

// NewTracingExporter creates a span exporter for the target.
func NewTracingExporter(ctx context.Context, t Target) (sdktrace.SpanExporter, error) {
	switch t.Name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(t.writer()))

	case "otlp", "jaeger":
		// Jaeger ingests OTLP natively.
		endpoint := t.endpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("%s endpoint not configured: set an endpoint or OTEL_EXPORTER_OTLP_ENDPOINT", t.Name)
		}
		opts := []otlptracegrpc.Option{}
		if t.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(t.Endpoint))
		}
		if t.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)

	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	default:
		return nil, fmt.Errorf("unknown exporter: %q", t.Name)
	}
}

// NewMetricsReader creates a metrics reader for the target.
func NewMetricsReader(ctx context.Context, t Target) (sdkmetric.Reader, error) {
	switch t.Name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(t.writer()))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "otlp":
		endpoint := t.endpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("otlp metrics endpoint not configured: set an endpoint or OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		opts := []otlpmetricgrpc.Option{}
		if t.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(t.Endpoint))
		}
		if t.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "prometheus":
		// Registers with the default Prometheus registerer; served by promhttp.
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return exp, nil

	case "none", "":
		return sdkmetric.NewManualReader(), nil

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", t.Name)
	}
}
