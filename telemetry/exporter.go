// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// adjustingExporter wraps a SpanExporter. On the way out, each finished
// flowtel span is run through the metric modules and, when payload logging
// is disabled, has its input/output attribute values redacted.
type adjustingExporter struct {
	exporter          sdktrace.SpanExporter
	modules           []Module
	logInputAndOutput bool
}

func newAdjustingExporter(exporter sdktrace.SpanExporter, modules []Module, logInputAndOutput bool) *adjustingExporter {
	return &adjustingExporter{
		exporter:          exporter,
		modules:           modules,
		logInputAndOutput: logInputAndOutput,
	}
}

func (e *adjustingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	adjusted := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, span := range spans {
		// Spans without flowtel attributes come from foreign
		// instrumentation sharing the provider; pass them through.
		if extractStringAttribute(span.Attributes(), "flowtel:name") == "" {
			adjusted = append(adjusted, span)
			continue
		}
		for _, module := range e.modules {
			if module != nil {
				module.Tick(span, e.logInputAndOutput)
			}
		}
		if !e.logInputAndOutput {
			span = redactInputOutput(span)
		}
		adjusted = append(adjusted, span)
	}
	return e.exporter.ExportSpans(ctx, adjusted)
}

func (e *adjustingExporter) Shutdown(ctx context.Context) error {
	return e.exporter.Shutdown(ctx)
}

func (e *adjustingExporter) ForceFlush(ctx context.Context) error {
	if flusher, ok := e.exporter.(interface{ ForceFlush(context.Context) error }); ok {
		return flusher.ForceFlush(ctx)
	}
	return nil
}

// redactInputOutput replaces payload attribute values so they never leave
// the process when payload logging is disabled.
func redactInputOutput(span sdktrace.ReadOnlySpan) sdktrace.ReadOnlySpan {
	hasPayload := false
	for _, attr := range span.Attributes() {
		if attr.Key == "flowtel:input" || attr.Key == "flowtel:output" {
			hasPayload = true
			break
		}
	}
	if !hasPayload {
		return span
	}

	return &spanWithModifiedAttributes{
		ReadOnlySpan: span,
		modifyFunc: func(attrs []attribute.KeyValue) []attribute.KeyValue {
			newAttrs := make([]attribute.KeyValue, 0, len(attrs))
			for _, attr := range attrs {
				switch attr.Key {
				case "flowtel:input":
					newAttrs = append(newAttrs, attribute.String("flowtel:input", "<redacted>"))
				case "flowtel:output":
					newAttrs = append(newAttrs, attribute.String("flowtel:output", "<redacted>"))
				default:
					newAttrs = append(newAttrs, attr)
				}
			}
			return newAttrs
		},
	}
}

// spanWithModifiedAttributes wraps a span and modifies its attributes.
type spanWithModifiedAttributes struct {
	sdktrace.ReadOnlySpan
	modifyFunc func([]attribute.KeyValue) []attribute.KeyValue
}

func (s *spanWithModifiedAttributes) Attributes() []attribute.KeyValue {
	return s.modifyFunc(s.ReadOnlySpan.Attributes())
}
