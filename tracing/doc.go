// Package tracing wraps OpenTelemetry so the coordinator and the approval gate
// can open spans without importing otel directly. Until Init (or
// InitWithExporter) is called the global no-op provider is used and spans
// cost nothing.
package tracing
