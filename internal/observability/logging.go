package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Supported log formats.
const (
	FormatText       = "text"
	FormatJSON       = "json"
	FormatOTelStdout = "otel-stdout"
	FormatOTLPHTTP   = "otlp-http"
	FormatOTLPGRPC   = "otlp-grpc"
)

const instrumentationName = "github.com/florianilch/gqlsession"

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger for the given level and format.
// The returned ShutdownFunc must be called before exit to flush exported records.
func Instrument(ctx context.Context, level slog.Level, format string) (ShutdownFunc, error) {
	return instrument(ctx, os.Stderr, level, format)
}

func instrument(ctx context.Context, w io.Writer, level slog.Level, format string) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	switch format {
	case FormatText, "":
		slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
		return noop, nil
	case FormatJSON:
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
		return noop, nil
	}

	exporter, err := newExporter(ctx, w, format)
	if err != nil {
		return nil, err
	}

	var processor sdklog.Processor
	if format == FormatOTelStdout {
		processor = sdklog.NewSimpleProcessor(exporter)
	} else {
		processor = sdklog.NewBatchProcessor(exporter)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(level))),
	)
	slog.SetDefault(otelslog.NewLogger(instrumentationName, otelslog.WithLoggerProvider(provider)))

	return provider.Shutdown, nil
}

func newExporter(ctx context.Context, w io.Writer, format string) (sdklog.Exporter, error) {
	switch format {
	case FormatOTelStdout:
		return stdoutlog.New(stdoutlog.WithWriter(w))
	case FormatOTLPHTTP:
		return otlploghttp.New(ctx)
	case FormatOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// severity maps a slog level onto the closest OpenTelemetry minimum severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level >= slog.LevelError:
		return minsev.SeverityError
	case level >= slog.LevelWarn:
		return minsev.SeverityWarn
	case level >= slog.LevelInfo:
		return minsev.SeverityInfo
	default:
		return minsev.SeverityDebug
	}
}
