// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTestMeter installs a manual-reader meter provider as the global
// provider for the duration of the test. Modules constructed afterward bind
// their instruments to it.
func installTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })
	return reader
}

// makeSpan produces a finished span carrying the given attributes and
// status, for feeding to modules directly.
func makeSpan(t *testing.T, name string, status sdktrace.Status, attrs ...attribute.KeyValue) sdktrace.ReadOnlySpan {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	_, span := tp.Tracer("test").Start(context.Background(), name)
	span.SetAttributes(attrs...)
	if status.Code == codes.Error {
		span.SetStatus(status.Code, status.Description)
	}
	time.Sleep(time.Millisecond)
	span.End()
	ended := sr.Ended()
	require.Len(t, ended, 1)
	return ended[0]
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func histogramCount(t *testing.T, reader *sdkmetric.ManualReader, name string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok, "metric %s is not a float64 histogram", name)
			var total uint64
			for _, dp := range hist.DataPoints {
				total += dp.Count
			}
			return total
		}
	}
	return 0
}

func TestFlowMetrics(t *testing.T) {
	reader := installTestMeter(t)
	fm := NewFlowMetrics()

	fm.Tick(makeSpan(t, "testFlow", sdktrace.Status{},
		attribute.Bool("flowtel:isRoot", true),
		attribute.String("flowtel:name", "testFlow"),
		attribute.String("flowtel:state", "success"),
	), true)

	assert.EqualValues(t, 1, counterValue(t, reader, "flowtel/flow/requests"))
	assert.EqualValues(t, 1, histogramCount(t, reader, "flowtel/flow/latency"))
}

func TestFlowMetricsError(t *testing.T) {
	reader := installTestMeter(t)
	fm := NewFlowMetrics()

	fm.Tick(makeSpan(t, "testFlow",
		sdktrace.Status{Code: codes.Error, Description: "boom"},
		attribute.Bool("flowtel:isRoot", true),
		attribute.String("flowtel:name", "testFlow"),
		attribute.String("flowtel:state", "error"),
	), true)

	assert.EqualValues(t, 1, counterValue(t, reader, "flowtel/flow/requests"))
}

func TestFlowMetricsIgnoresNonRoot(t *testing.T) {
	reader := installTestMeter(t)
	fm := NewFlowMetrics()

	fm.Tick(makeSpan(t, "sub1", sdktrace.Status{},
		attribute.String("flowtel:name", "sub1"),
		attribute.String("flowtel:state", "success"),
	), true)

	assert.EqualValues(t, 0, counterValue(t, reader, "flowtel/flow/requests"))
}

func TestPathMetrics(t *testing.T) {
	reader := installTestMeter(t)
	pm := NewPathMetrics()

	// Failure source: counted.
	pm.Tick(makeSpan(t, "sub2",
		sdktrace.Status{Code: codes.Error, Description: "boom"},
		attribute.String("flowtel:path", "testFlow > sub1 > sub2"),
		attribute.String("flowtel:state", "error"),
		attribute.Bool("flowtel:isFailureSource", true),
	), true)
	// Propagator: not counted.
	pm.Tick(makeSpan(t, "sub1",
		sdktrace.Status{Code: codes.Error, Description: "boom"},
		attribute.String("flowtel:path", "testFlow > sub1"),
		attribute.String("flowtel:state", "error"),
	), true)
	// Success: not counted.
	pm.Tick(makeSpan(t, "ok",
		sdktrace.Status{},
		attribute.String("flowtel:path", "testFlow > ok"),
		attribute.String("flowtel:state", "success"),
	), true)

	assert.EqualValues(t, 1, counterValue(t, reader, "flowtel/path/failures"))
	assert.EqualValues(t, 1, histogramCount(t, reader, "flowtel/path/latency"))
}

func TestGenerateMetrics(t *testing.T) {
	reader := installTestMeter(t)
	gm := NewGenerateMetrics()

	gm.Tick(makeSpan(t, "testModel", sdktrace.Status{},
		attribute.String("flowtel:kind", "generate"),
		attribute.String("flowtel:name", "testModel"),
		attribute.String("flowtel:path", "testFlow > generate > testModel"),
		attribute.String("flowtel:output", `{"usage":{"inputTokens":10,"outputTokens":3}}`),
	), true)

	assert.EqualValues(t, 1, counterValue(t, reader, "flowtel/generate/requests"))
	assert.EqualValues(t, 10, counterValue(t, reader, "flowtel/generate/input/tokens"))
	assert.EqualValues(t, 3, counterValue(t, reader, "flowtel/generate/output/tokens"))
}

func TestGenerateMetricsRedactedOutput(t *testing.T) {
	reader := installTestMeter(t)
	gm := NewGenerateMetrics()

	// A redacted payload is not valid JSON; the request still counts but no
	// usage metrics are recorded.
	gm.Tick(makeSpan(t, "testModel", sdktrace.Status{},
		attribute.String("flowtel:kind", "generate"),
		attribute.String("flowtel:name", "testModel"),
		attribute.String("flowtel:output", "<redacted>"),
	), false)

	assert.EqualValues(t, 1, counterValue(t, reader, "flowtel/generate/requests"))
	assert.EqualValues(t, 0, counterValue(t, reader, "flowtel/generate/input/tokens"))
}

func TestGenerateMetricsIgnoresOtherKinds(t *testing.T) {
	reader := installTestMeter(t)
	gm := NewGenerateMetrics()

	gm.Tick(makeSpan(t, "sub1", sdktrace.Status{},
		attribute.String("flowtel:kind", "step"),
		attribute.String("flowtel:name", "sub1"),
	), true)

	assert.EqualValues(t, 0, counterValue(t, reader, "flowtel/generate/requests"))
}

func TestExtractErrorName(t *testing.T) {
	span := makeSpan(t, "failing",
		sdktrace.Status{Code: codes.Error, Description: "deadline exceeded"},
		attribute.String("flowtel:state", "error"),
	)
	assert.Equal(t, "deadline exceeded", extractErrorName(span))

	ok := makeSpan(t, "ok", sdktrace.Status{})
	assert.Equal(t, "", extractErrorName(ok))
}
