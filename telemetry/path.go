// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// PathMetrics records failure metrics keyed by the execution path of the
// span where the failure originated.
type PathMetrics struct {
	pathCounter   *MetricCounter   // flowtel/path/failures
	pathLatencies *MetricHistogram // flowtel/path/latency
}

// NewPathMetrics creates a path metrics module bound to the current global
// meter provider.
func NewPathMetrics() *PathMetrics {
	return &PathMetrics{
		pathCounter: NewMetricCounter(metricName("path", "failures"), MetricCounterOptions{
			Description: "Counts failing execution paths.",
			Unit:        "1",
		}),
		pathLatencies: NewMetricHistogram(metricName("path", "latency"), MetricHistogramOptions{
			Description: "Latencies per failing execution path.",
			Unit:        "ms",
		}),
	}
}

// Tick processes a finished span, recording metrics only for failing spans
// that are the source of their failure (not mere propagators).
func (p *PathMetrics) Tick(span sdktrace.ReadOnlySpan, logInputAndOutput bool) {
	attributes := span.Attributes()

	path := extractStringAttribute(attributes, "flowtel:path")
	isFailureSource := extractBoolAttribute(attributes, "flowtel:isFailureSource")
	state := extractStringAttribute(attributes, "flowtel:state")

	if path == "" || !isFailureSource || state != "error" {
		return
	}

	errorName := extractErrorName(span)
	if errorName == "" {
		errorName = "<unknown>"
	}

	dims := map[string]any{
		"path":   path,
		"status": "failure",
		"error":  errorName,
		"source": "go",
	}
	p.pathCounter.Add(1, dims)
	p.pathLatencies.Record(latencyMillis(span), dims)
}
