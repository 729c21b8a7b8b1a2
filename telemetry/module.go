// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// A Module consumes finished spans on the export path and records metrics
// about them. Modules never fail an export; a span a module cannot parse is
// simply skipped.
type Module interface {
	Tick(span sdktrace.ReadOnlySpan, logInputAndOutput bool)
}

// extractStringAttribute safely extracts a string attribute from span
// attributes.
func extractStringAttribute(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}

// extractBoolAttribute safely extracts a boolean attribute from span
// attributes.
func extractBoolAttribute(attrs []attribute.KeyValue, key string) bool {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsBool()
		}
	}
	return false
}

// latencyMillis calculates the span latency in milliseconds.
func latencyMillis(span sdktrace.ReadOnlySpan) float64 {
	startTime := span.StartTime()
	endTime := span.EndTime()
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return float64(endTime.Sub(startTime).Nanoseconds()) / 1e6
}

// extractErrorName extracts error information from span events and status.
func extractErrorName(span sdktrace.ReadOnlySpan) string {
	for _, event := range span.Events() {
		if event.Name == "exception" {
			for _, attr := range event.Attributes {
				if string(attr.Key) == "exception.type" {
					return attr.Value.AsString()
				}
			}
		}
	}
	if span.Status().Code == codes.Error {
		return span.Status().Description
	}
	return ""
}
