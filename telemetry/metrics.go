// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "flowtel"

// MetricCounterOptions holds configuration for a counter metric.
type MetricCounterOptions struct {
	Description string
	Unit        string
}

// MetricHistogramOptions holds configuration for a histogram metric.
type MetricHistogramOptions struct {
	Description string
	Unit        string
}

// MetricCounter wraps an OpenTelemetry counter with flowtel conventions.
type MetricCounter struct {
	counter metric.Int64Counter
}

// NewMetricCounter creates a counter metric with the given name and
// options, bound to the current global meter provider. A counter whose
// instrument cannot be created records nothing; telemetry never takes the
// process down.
func NewMetricCounter(name string, opts MetricCounterOptions) *MetricCounter {
	meter := otel.Meter(meterName)
	counter, err := meter.Int64Counter(name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit))
	if err != nil {
		slog.Error("failed to create counter, metric disabled", "name", name, "error", err)
		return &MetricCounter{}
	}
	return &MetricCounter{counter: counter}
}

// Add records a value to the counter with the given attributes.
func (m *MetricCounter) Add(value int64, attributes map[string]any) {
	if m.counter == nil {
		return
	}
	m.counter.Add(context.Background(), value,
		metric.WithAttributes(convertToOTelAttributes(attributes)...))
}

// MetricHistogram wraps an OpenTelemetry histogram with flowtel
// conventions.
type MetricHistogram struct {
	histogram metric.Float64Histogram
}

// NewMetricHistogram creates a histogram metric with the given name and
// options, bound to the current global meter provider. Like
// [NewMetricCounter], instrument creation failure disables the metric
// rather than failing the caller.
func NewMetricHistogram(name string, opts MetricHistogramOptions) *MetricHistogram {
	meter := otel.Meter(meterName)
	histogram, err := meter.Float64Histogram(name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit))
	if err != nil {
		slog.Error("failed to create histogram, metric disabled", "name", name, "error", err)
		return &MetricHistogram{}
	}
	return &MetricHistogram{histogram: histogram}
}

// Record records a value to the histogram with the given attributes.
func (m *MetricHistogram) Record(value float64, attributes map[string]any) {
	if m.histogram == nil {
		return
	}
	m.histogram.Record(context.Background(), value,
		metric.WithAttributes(convertToOTelAttributes(attributes)...))
}

// convertToOTelAttributes converts an attribute map to OpenTelemetry
// attributes. Unsupported value types are stringified.
func convertToOTelAttributes(attrs map[string]any) []attribute.KeyValue {
	if attrs == nil {
		return nil
	}
	result := make([]attribute.KeyValue, 0, len(attrs))
	for key, value := range attrs {
		if value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			result = append(result, attribute.String(key, v))
		case int:
			result = append(result, attribute.Int(key, v))
		case int64:
			result = append(result, attribute.Int64(key, v))
		case float64:
			result = append(result, attribute.Float64(key, v))
		case bool:
			result = append(result, attribute.Bool(key, v))
		default:
			result = append(result, attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
	return result
}

// metricName prefixes metric names with the flowtel namespace.
func metricName(namespace, name string) string {
	return fmt.Sprintf("flowtel/%s/%s", namespace, name)
}
