// Package observability configures the process-wide slog logger.
//
// Text and JSON formats write to stderr through the standard slog handlers.
// The otel-* formats bridge slog records into an OpenTelemetry LoggerProvider
// and export them to stdout or an OTLP collector (HTTP or gRPC). Exporter
// endpoints are taken from the standard OTEL_EXPORTER_OTLP_* variables.
package observability
