package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricApprovalRequested = "ulma.approval.requested"
	MetricApprovalResolved  = "ulma.approval.resolved"
	MetricTurnDuration      = "ulma.turn.duration"
)

// Count adds one to counter name. Metrics go to the global MeterProvider and
// are dropped when none is installed.
func Count(ctx context.Context, name string, attrs map[string]string) {
	counter, err := otel.Meter(TracerName).Int64Counter(name)
	if err != nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(toAttributes(attrs)...))
}

// Observe records duration in seconds on histogram name.
func Observe(ctx context.Context, name string, duration time.Duration, attrs map[string]string) {
	histogram, err := otel.Meter(TracerName).Float64Histogram(name, metric.WithUnit("s"))
	if err != nil {
		return
	}
	histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(toAttributes(attrs)...))
}

func toAttributes(attrs map[string]string) []attribute.KeyValue {
	ret := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		ret = append(ret, attribute.String(k, v))
	}
	return ret
}
