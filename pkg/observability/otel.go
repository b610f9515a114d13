// Package observability installs the OpenTelemetry trace and log pipelines.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	TracesPath    = "/v1/traces"
	LogsPath      = "/v1/logs"
	ExportTimeout = 10 * time.Second
	MaxQueueSize  = 2048
)

type Settings struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string // host:port of the OTLP/HTTP collector
	AuthHeader     string
	Insecure       bool
}

// Enabled reports whether an exporter endpoint is configured.
func (s Settings) Enabled() bool {
	return s.Endpoint != ""
}

// Setup installs the global propagator and, when an endpoint is configured, the
// tracer and logger providers. The returned shutdown flushes and stops whatever was
// installed and is always safe to call.
func Setup(ctx context.Context, s Settings) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !s.Enabled() {
		return shutdown, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(s.ServiceName),
			semconv.ServiceVersion(s.ServiceVersion),
		),
	)
	if err != nil {
		return shutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	var setupErr error
	handleErr := func(name string, inErr error) {
		if inErr != nil {
			setupErr = errors.Join(setupErr, fmt.Errorf("%s: %w", name, inErr))
		}
	}

	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(s.Endpoint),
		otlptracehttp.WithURLPath(TracesPath),
	}
	logOpts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(s.Endpoint),
		otlploghttp.WithURLPath(LogsPath),
	}
	if s.AuthHeader != "" {
		headers := map[string]string{"Authorization": s.AuthHeader}
		traceOpts = append(traceOpts, otlptracehttp.WithHeaders(headers))
		logOpts = append(logOpts, otlploghttp.WithHeaders(headers))
	}
	if s.Insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	handleErr("OTLP Trace Exporter", err)
	if err == nil {
		tracerProvider := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithResource(res),
			sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter,
				sdktrace.WithExportTimeout(ExportTimeout),
				sdktrace.WithMaxQueueSize(MaxQueueSize),
			)),
		)
		otel.SetTracerProvider(tracerProvider)
		shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	}

	logExporter, err := otlploghttp.New(ctx, logOpts...)
	handleErr("OTLP Log Exporter", err)
	if err == nil {
		loggerProvider := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter,
				sdklog.WithExportTimeout(ExportTimeout),
				sdklog.WithMaxQueueSize(MaxQueueSize),
			)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(loggerProvider)
		shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
	}

	return shutdown, setupErr
}
