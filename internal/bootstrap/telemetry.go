package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"browser-agent/internal/config"
)

const serviceName = "browser-agent"

// newTraceProvider exports spans to TRACE_FILE, or to stderr so that
// console and command output on stdout stay readable.
func newTraceProvider(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	var (
		sink io.Writer = os.Stderr
		file *os.File
		err  error
		path = cfg.AppConfig.TraceFile
	)

	if path != "" {
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		sink = file
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(sink),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			err := tp.Shutdown(ctx)

			if file != nil {
				if closeErr := file.Close(); closeErr != nil {
					logger.Warn("Failed to close trace file", zap.Error(closeErr))
				}
			}

			return err
		},
	})

	return tp, nil
}

func registerTracing(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
}
