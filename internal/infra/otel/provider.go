// Package otel wires process-wide tracing and log export: a
// TracerProvider exporting spans via OTLP/HTTP, and a LoggerProvider
// the logger package's slog handler bridges into.
package otel

import (
	"context"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config controls whether and where spans/logs are exported.
type Config struct {
	ServiceName  string
	OTLPEndpoint string
	Enabled      bool
}

// ConfigFromEnv builds a Config from OTEL_SERVICE_NAME,
// OTEL_EXPORTER_OTLP_ENDPOINT and OTEL_ENABLED, defaulting to enabled
// against a local collector so a developer gets traces/logs without
// any env setup.
func ConfigFromEnv() Config {
	cfg := Config{
		ServiceName:  "agentic-rag",
		OTLPEndpoint: "http://localhost:4318",
		Enabled:      true,
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	return cfg
}

// stripScheme turns an "http://host:port" OTLPEndpoint into the bare
// "host:port" form the exporter's WithEndpoint option expects.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}

// InitProvider installs the global TracerProvider and LoggerProvider.
// When cfg.Enabled is false it is a no-op returning a shutdown func
// that does nothing, so callers can always defer the returned func
// unconditionally.
func InitProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
	)

	endpoint := stripScheme(cfg.OTLPEndpoint)

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(loggerProvider)

	return func(shutdownCtx context.Context) error {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return loggerProvider.Shutdown(shutdownCtx)
	}, nil
}
