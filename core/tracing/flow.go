// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tracing

import "context"

// RunFlow runs fn as a top-level flow invocation named name.
func RunFlow[I, O any](ctx context.Context, tstate *State, name string, input I, fn func(context.Context, I) (O, error)) (O, error) {
	return RunInNewSpan(ctx, tstate, &SpanMetadata{Name: name, Kind: KindFlow, IsRoot: true}, input, fn)
}

// RunStep runs fn as a named sub-step of the current call. The step's path
// is the caller's path plus name.
func RunStep[I, O any](ctx context.Context, tstate *State, name string, input I, fn func(context.Context, I) (O, error)) (O, error) {
	return RunInNewSpan(ctx, tstate, &SpanMetadata{Name: name, Kind: KindStep}, input, fn)
}

// GenerateConfig is the model call configuration recorded on generate
// spans and logged in Config lines.
type GenerateConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	TopK            int      `json:"topK,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// RunGenerate runs fn as a model generate call. It opens a "generate" step
// and, inside it, a span named after the model, so the resulting path reads
// "... > generate > <model>". The model invocation itself is the caller's
// business; fn typically wraps a model client call.
func RunGenerate[I, O any](ctx context.Context, tstate *State, model string, config *GenerateConfig, input I, fn func(context.Context, I) (O, error)) (O, error) {
	var cfg any
	if config != nil {
		cfg = config
	}
	return RunInNewSpan(ctx, tstate, &SpanMetadata{Name: "generate", Kind: KindStep}, input,
		func(ctx context.Context, input I) (O, error) {
			return RunInNewSpan(ctx, tstate, &SpanMetadata{Name: model, Kind: KindGenerate, Config: cfg}, input, fn)
		})
}
