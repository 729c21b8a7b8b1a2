// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestMetricCreationFailureDisables(t *testing.T) {
	installTestMeter(t)

	// An empty instrument name is rejected by the SDK meter. The wrappers
	// must degrade to no-ops, not panic, and recording through them must
	// be safe.
	c := NewMetricCounter("", MetricCounterOptions{})
	c.Add(1, map[string]any{"status": "success"})

	h := NewMetricHistogram("", MetricHistogramOptions{})
	h.Record(1.5, nil)
}

func TestConvertToOTelAttributes(t *testing.T) {
	got := convertToOTelAttributes(map[string]any{
		"s":       "v",
		"i":       3,
		"i64":     int64(4),
		"f":       1.5,
		"b":       true,
		"other":   []string{"x"},
		"dropped": nil,
	})
	byKey := map[attribute.Key]attribute.KeyValue{}
	for _, kv := range got {
		byKey[kv.Key] = kv
	}
	assert.Len(t, got, 6)
	assert.Equal(t, "v", byKey["s"].Value.AsString())
	assert.Equal(t, int64(3), byKey["i"].Value.AsInt64())
	assert.Equal(t, int64(4), byKey["i64"].Value.AsInt64())
	assert.Equal(t, 1.5, byKey["f"].Value.AsFloat64())
	assert.Equal(t, true, byKey["b"].Value.AsBool())
	assert.Equal(t, "[x]", byKey["other"].Value.AsString())

	assert.Nil(t, convertToOTelAttributes(nil))
}
