package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"opacbridge/pkg/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

type OtlpConnConfig struct {
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

type OtlpConfig struct {
	Traces OtlpConnConfig `json:"traces"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

// Tracer returns a named tracer from the global provider, spans are no-ops until
// SetupOtlp installs a real provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Otlp holds the installed tracer provider.
type Otlp struct {
	TracerProvider *sdktrace.TracerProvider
}

func (o Otlp) Shutdown(ctx context.Context) error {
	if o.TracerProvider == nil {
		return nil
	}
	return o.TracerProvider.Shutdown(ctx)
}

// SetupOtlpFromEnv searches up the filesystem from the cwd to find a file called
// telemetry.json5, if there is none tracing stays disabled.
func SetupOtlpFromEnv(ctx context.Context, serviceName string) (Otlp, error) {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if os.IsNotExist(err) {
		return Otlp{}, nil
	}
	if err != nil {
		return Otlp{}, err
	}
	return SetupOtlp(ctx, serviceName, config)
}

// SetupOtlp installs a global tracer provider that exports over OTLP/HTTP.
func SetupOtlp(ctx context.Context, serviceName string, config Config) (Otlp, error) {
	if config.Otlp.Traces.HttpEndpoint == "" {
		return Otlp{}, nil
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return Otlp{}, err
	}

	exportCtx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	exporter, err := otlptracehttp.New(
		exportCtx,
		otlptracehttp.WithEndpointURL(config.Otlp.Traces.HttpEndpoint),
		otlptracehttp.WithHeaders(config.Otlp.Traces.Headers),
	)
	if err != nil {
		return Otlp{}, err
	}
	slog.Info(
		"tracer export initialized",
		"type", "http",
		"endpoint", config.Otlp.Traces.HttpEndpoint,
		"headers", len(config.Otlp.Traces.Headers) > 0,
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(provider)

	return Otlp{TracerProvider: provider}, nil
}
