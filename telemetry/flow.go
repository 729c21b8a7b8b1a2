// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// FlowMetrics records request and latency metrics for top-level flow
// invocations.
type FlowMetrics struct {
	flowCounter   *MetricCounter   // flowtel/flow/requests
	flowLatencies *MetricHistogram // flowtel/flow/latency
}

// NewFlowMetrics creates a flow metrics module bound to the current global
// meter provider.
func NewFlowMetrics() *FlowMetrics {
	return &FlowMetrics{
		flowCounter: NewMetricCounter(metricName("flow", "requests"), MetricCounterOptions{
			Description: "Counts calls to flowtel flows.",
			Unit:        "1",
		}),
		flowLatencies: NewMetricHistogram(metricName("flow", "latency"), MetricHistogramOptions{
			Description: "Latencies when calling flowtel flows.",
			Unit:        "ms",
		}),
	}
}

// Tick processes a finished root span.
func (f *FlowMetrics) Tick(span sdktrace.ReadOnlySpan, logInputAndOutput bool) {
	attributes := span.Attributes()

	if !extractBoolAttribute(attributes, "flowtel:isRoot") {
		return
	}

	name := extractStringAttribute(attributes, "flowtel:name")
	state := extractStringAttribute(attributes, "flowtel:state")
	latencyMs := latencyMillis(span)

	switch state {
	case "success":
		f.write(name, latencyMs, map[string]any{
			"name":   name,
			"status": "success",
			"source": "go",
		})
	case "error":
		errorName := extractErrorName(span)
		if errorName == "" {
			errorName = "<unknown>"
		}
		f.write(name, latencyMs, map[string]any{
			"name":   name,
			"status": "failure",
			"error":  errorName,
			"source": "go",
		})
	default:
		slog.Warn("unknown flow state", "state", state, "flow", name)
	}
}

func (f *FlowMetrics) write(name string, latencyMs float64, dimensions map[string]any) {
	f.flowCounter.Add(1, dimensions)
	f.flowLatencies.Record(latencyMs, dimensions)
}
