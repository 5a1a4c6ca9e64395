package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func parseLevel(level string) (log.Severity, error) {
	switch strings.ToLower(level) {
	case "debug":
		return log.SeverityDebug, nil
	case "", "info":
		return log.SeverityInfo, nil
	case "warn", "warning":
		return log.SeverityWarn, nil
	case "error":
		return log.SeverityError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

// severityProcessor drops records below a minimum severity.
type severityProcessor struct {
	sdklog.Processor
	min log.Severity
}

func (p severityProcessor) OnEmit(ctx context.Context, record *sdklog.Record) error {
	if record.Severity() < p.min {
		return nil
	}
	return p.Processor.OnEmit(ctx, record)
}

// setupTelemetry installs global log and, when traceOut is set, trace
// providers. The returned function flushes and shuts them down.
func setupTelemetry(logOut io.Writer, level string, traceOut io.Writer) (func(context.Context) error, error) {
	minSeverity, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	logExporter, err := stdoutlog.New(stdoutlog.WithWriter(logOut))
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}
	loggerProvider := sdklog.NewLoggerProvider(sdklog.WithProcessor(severityProcessor{
		Processor: sdklog.NewBatchProcessor(logExporter),
		min:       minSeverity,
	}))
	global.SetLoggerProvider(loggerProvider)

	shutdowns := []func(context.Context) error{loggerProvider.Shutdown}
	if traceOut != nil {
		traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create trace exporter: %w", err), loggerProvider.Shutdown(context.Background()))
		}
		tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
		otel.SetTracerProvider(tracerProvider)
		shutdowns = append(shutdowns, tracerProvider.Shutdown)
	}

	return func(ctx context.Context) error {
		var errs error
		for _, shutdown := range shutdowns {
			errs = errors.Join(errs, shutdown(ctx))
		}
		return errs
	}, nil
}
