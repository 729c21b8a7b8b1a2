// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tracing

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// defaultRetryElapsed bounds the total time spent retrying one trace when
// no explicit retry cap is configured.
const defaultRetryElapsed = 30 * time.Second

// A backendExporter is an OpenTelemetry SpanExporter that converts finished
// spans and delivers them to a Backend. Delivery failures are retried with
// exponential backoff; a delivery that still fails after the retry budget
// is logged and dropped, never surfaced to the instrumented call's caller.
type backendExporter struct {
	backend       Backend
	maxRetries    uint64
	retryInterval time.Duration // initial backoff interval, shortened in tests
}

func newBackendExporter(backend Backend, maxRetries uint64) *backendExporter {
	return &backendExporter{backend: backend, maxRetries: maxRetries}
}

// NewBackendExporter returns a SpanExporter delivering finished spans to
// backend, for callers that compose their own span processors. maxRetries
// caps delivery retries; zero applies the default backoff budget.
func NewBackendExporter(backend Backend, maxRetries uint64) sdktrace.SpanExporter {
	return newBackendExporter(backend, maxRetries)
}

// ExportSpans implements [go.opentelemetry.io/otel/sdk/trace.SpanExporter].
// Saving is not atomic: it is possible that some but not all traces of a
// batch will be saved.
func (e *backendExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.backend == nil {
		slog.Debug("no trace backend is configured, trace not saved")
		return nil
	}

	for tid, spans := range groupByTrace(spans) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		td, err := convertTrace(spans)
		if err != nil {
			return err
		}
		td.TraceID = tid.String()
		if err := e.deliver(ctx, td); err != nil {
			slog.Error("trace export failed, dropping trace",
				"traceId", td.TraceID, "error", err)
			return err
		}
	}
	return nil
}

// deliver retries backend.Export until it succeeds, the context is done, or
// the retry budget is exhausted.
func (e *backendExporter) deliver(ctx context.Context, td *Data) error {
	bo := backoff.NewExponentialBackOff()
	if e.retryInterval > 0 {
		bo.InitialInterval = e.retryInterval
	}
	bo.MaxElapsedTime = defaultRetryElapsed
	var b backoff.BackOff = backoff.WithContext(bo, ctx)
	if e.maxRetries > 0 {
		b = backoff.WithMaxRetries(b, e.maxRetries)
	}
	return backoff.Retry(func() error {
		return e.backend.Export(ctx, td)
	}, b)
}

// Shutdown implements [go.opentelemetry.io/otel/sdk/trace.SpanExporter].
func (e *backendExporter) Shutdown(ctx context.Context) error {
	if e.backend == nil {
		return nil
	}
	return e.backend.Shutdown(ctx)
}
