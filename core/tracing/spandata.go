// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	otrace "go.opentelemetry.io/otel/trace"
)

// Data is information about one finished trace, in a shape that can be
// passed to json.Marshal. Most OpenTelemetry types make no claims about
// JSON serializability, so the exporter converts spans into these types
// before handing them to a Backend.
type Data struct {
	TraceID     string               `json:"traceId"`
	DisplayName string               `json:"displayName"`
	StartTime   Milliseconds         `json:"startTime"`
	EndTime     Milliseconds         `json:"endTime"`
	Spans       map[string]*SpanData `json:"spans"`
}

// SpanData is information about a single finished span.
// See https://pkg.go.dev/go.opentelemetry.io/otel/sdk/trace#ReadOnlySpan.
type SpanData struct {
	SpanID       string         `json:"spanId"`
	TraceID      string         `json:"traceId,omitempty"`
	ParentSpanID string         `json:"parentSpanId,omitempty"`
	StartTime    Milliseconds   `json:"startTime"`
	EndTime      Milliseconds   `json:"endTime"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	DisplayName  string         `json:"displayName"`
	SpanKind     string         `json:"spanKind"` // trace.SpanKind as a string
	Status       Status         `json:"status"`
	TimeEvents   TimeEvents     `json:"timeEvents,omitempty"`
}

type TimeEvents struct {
	TimeEvent []TimeEvent `json:"timeEvent,omitempty"`
}

type TimeEvent struct {
	Time       Milliseconds `json:"time,omitempty"`
	Annotation Annotation   `json:"annotation,omitempty"`
}

type Annotation struct {
	Attributes  map[string]any `json:"attributes,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Status is a copy of [go.opentelemetry.io/otel/sdk/trace.Status],
// with struct tags for the wire format.
type Status struct {
	Code        uint32 `json:"code"` // avoid the MarshalJSON method on codes.Code
	Description string `json:"description,omitempty"`
}

// convertTrace converts a list of spans to a Data.
// The spans must all have the same trace ID.
func convertTrace(spans []sdktrace.ReadOnlySpan) (*Data, error) {
	td := &Data{Spans: map[string]*SpanData{}}
	for _, span := range spans {
		cspan := convertSpan(span)
		// The unique span with no parent determines the Data fields.
		if cspan.ParentSpanID == "" {
			if td.DisplayName != "" {
				return nil, errors.New("more than one parentless span")
			}
			td.DisplayName = cspan.DisplayName
			td.StartTime = cspan.StartTime
			td.EndTime = cspan.EndTime
		}
		td.Spans[cspan.SpanID] = cspan
	}
	return td, nil
}

// convertSpan converts an OpenTelemetry span to a SpanData.
func convertSpan(span sdktrace.ReadOnlySpan) *SpanData {
	sc := span.SpanContext()
	sd := &SpanData{
		SpanID:      sc.SpanID().String(),
		TraceID:     sc.TraceID().String(),
		StartTime:   ToMilliseconds(span.StartTime()),
		EndTime:     ToMilliseconds(span.EndTime()),
		Attributes:  attributesToMap(span.Attributes()),
		DisplayName: span.Name(),
		SpanKind:    strings.ToUpper(span.SpanKind().String()),
		Status:      convertStatus(span.Status()),
	}
	if p := span.Parent(); p.HasSpanID() {
		sd.ParentSpanID = p.SpanID().String()
	}
	if len(span.Events()) > 0 {
		sd.TimeEvents.TimeEvent = convertEvents(span.Events())
	}
	return sd
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	m := map[string]any{}
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.AsInterface()
	}
	return m
}

func convertEvents(evs []sdktrace.Event) []TimeEvent {
	var tes []TimeEvent
	for _, e := range evs {
		tes = append(tes, TimeEvent{
			Time: ToMilliseconds(e.Time),
			Annotation: Annotation{
				Description: e.Name,
				Attributes:  attributesToMap(e.Attributes),
			},
		})
	}
	return tes
}

func convertStatus(s sdktrace.Status) Status {
	return Status{
		Code:        uint32(s.Code),
		Description: s.Description,
	}
}

// groupByTrace buckets finished spans by their trace ID.
func groupByTrace(spans []sdktrace.ReadOnlySpan) map[otrace.TraceID][]sdktrace.ReadOnlySpan {
	byTrace := map[otrace.TraceID][]sdktrace.ReadOnlySpan{}
	for _, span := range spans {
		tid := span.SpanContext().TraceID()
		byTrace[tid] = append(byTrace[tid], span)
	}
	return byTrace
}
