// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// generateUsage mirrors the optional usage block a model call may report in
// its output payload.
type generateUsage struct {
	InputTokens      int64 `json:"inputTokens,omitempty"`
	OutputTokens     int64 `json:"outputTokens,omitempty"`
	InputCharacters  int64 `json:"inputCharacters,omitempty"`
	OutputCharacters int64 `json:"outputCharacters,omitempty"`
}

type generateOutput struct {
	Usage     *generateUsage `json:"usage,omitempty"`
	LatencyMs float64        `json:"latencyMs,omitempty"`
}

// GenerateMetrics records request, latency and usage metrics for model
// generate calls.
type GenerateMetrics struct {
	requestCounter   *MetricCounter   // flowtel/generate/requests
	latencies        *MetricHistogram // flowtel/generate/latency
	inputTokens      *MetricCounter   // flowtel/generate/input/tokens
	outputTokens     *MetricCounter   // flowtel/generate/output/tokens
	inputCharacters  *MetricCounter   // flowtel/generate/input/characters
	outputCharacters *MetricCounter   // flowtel/generate/output/characters
}

// NewGenerateMetrics creates a generate metrics module bound to the current
// global meter provider.
func NewGenerateMetrics() *GenerateMetrics {
	return &GenerateMetrics{
		requestCounter: NewMetricCounter(metricName("generate", "requests"), MetricCounterOptions{
			Description: "Counts calls to flowtel generate actions.",
			Unit:        "1",
		}),
		latencies: NewMetricHistogram(metricName("generate", "latency"), MetricHistogramOptions{
			Description: "Latencies when interacting with a model.",
			Unit:        "ms",
		}),
		inputTokens: NewMetricCounter(metricName("generate", "input/tokens"), MetricCounterOptions{
			Description: "Counts input tokens to a model.",
			Unit:        "1",
		}),
		outputTokens: NewMetricCounter(metricName("generate", "output/tokens"), MetricCounterOptions{
			Description: "Counts output tokens from a model.",
			Unit:        "1",
		}),
		inputCharacters: NewMetricCounter(metricName("generate", "input/characters"), MetricCounterOptions{
			Description: "Counts input characters to a model.",
			Unit:        "1",
		}),
		outputCharacters: NewMetricCounter(metricName("generate", "output/characters"), MetricCounterOptions{
			Description: "Counts output characters from a model.",
			Unit:        "1",
		}),
	}
}

// Tick processes a finished generate span.
func (g *GenerateMetrics) Tick(span sdktrace.ReadOnlySpan, logInputAndOutput bool) {
	attributes := span.Attributes()

	if extractStringAttribute(attributes, "flowtel:kind") != "generate" {
		return
	}

	modelName := extractStringAttribute(attributes, "flowtel:name")
	path := extractStringAttribute(attributes, "flowtel:path")
	status := "success"
	errName := extractErrorName(span)
	if errName != "" {
		status = "failure"
	}

	dims := map[string]any{
		"modelName": modelName,
		"path":      path,
		"status":    status,
		"source":    "go",
	}
	if errName != "" {
		dims["error"] = errName
	}
	g.requestCounter.Add(1, dims)
	g.latencies.Record(latencyMillis(span), dims)

	// Usage metrics are best effort: the output payload is opaque and may
	// not carry a usage block, or may be redacted.
	var output generateOutput
	outputStr := extractStringAttribute(attributes, "flowtel:output")
	if outputStr == "" {
		return
	}
	if err := json.Unmarshal([]byte(outputStr), &output); err != nil {
		return
	}
	if usage := output.Usage; usage != nil {
		g.inputTokens.Add(usage.InputTokens, dims)
		g.outputTokens.Add(usage.OutputTokens, dims)
		g.inputCharacters.Add(usage.InputCharacters, dims)
		g.outputCharacters.Add(usage.OutputCharacters, dims)
	}
}
