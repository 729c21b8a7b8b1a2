// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
)

// A Backend receives finished traces from the span exporter.
//
// Export must be safe to retry: redelivery of a trace whose spans were
// already saved must not duplicate them. Shutdown is called at most once,
// when the owning pipeline shuts down.
type Backend interface {
	Export(ctx context.Context, trace *Data) error
	Shutdown(ctx context.Context) error
}

// InMemoryBackend is a Backend that stores finished spans in memory.
// It exists for tests and local development: tests flush the pipeline and
// then inspect FinishedSpans instead of sleeping for async delivery.
type InMemoryBackend struct {
	mu     sync.Mutex
	traces map[string]*Data
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{traces: make(map[string]*Data)}
}

// Export merges the trace into the in-memory store. A span already present
// under the same ID is overwritten, so retried deliveries do not duplicate
// spans.
func (b *InMemoryBackend) Export(ctx context.Context, trace *Data) error {
	if trace == nil {
		return fmt.Errorf("trace cannot be nil")
	}
	if trace.TraceID == "" {
		return fmt.Errorf("trace ID cannot be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.traces[trace.TraceID]; ok {
		for id, span := range trace.Spans {
			existing.Spans[id] = span
		}
		if existing.DisplayName == "" {
			existing.DisplayName = trace.DisplayName
		}
	} else {
		b.traces[trace.TraceID] = trace
	}
	return nil
}

func (b *InMemoryBackend) Shutdown(ctx context.Context) error { return nil }

// Traces returns a snapshot of the stored traces keyed by trace ID.
func (b *InMemoryBackend) Traces() map[string]*Data {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := make(map[string]*Data, len(b.traces))
	for id, td := range b.traces {
		m[id] = td
	}
	return m
}

// FinishedSpans returns a point-in-time snapshot of every span delivered so
// far, ordered by start time.
func (b *InMemoryBackend) FinishedSpans() []*SpanData {
	b.mu.Lock()
	defer b.mu.Unlock()
	var spans []*SpanData
	for _, td := range b.traces {
		for _, sd := range td.Spans {
			spans = append(spans, sd)
		}
	}
	slices.SortFunc(spans, func(a, b *SpanData) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		default:
			return 0
		}
	})
	return spans
}

// Reset discards every stored trace. A subsequent flush and query reflects
// only spans recorded after the reset.
func (b *InMemoryBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.traces = make(map[string]*Data)
}

// HTTPBackend sends finished traces to a collector server over HTTP.
type HTTPBackend struct {
	url    string
	client *http.Client
}

// NewHTTPBackend creates a Backend that POSTs traces to the collector at
// the given base URL.
func NewHTTPBackend(url string) *HTTPBackend {
	return &HTTPBackend{url: url, client: &http.Client{}}
}

// Export saves the trace by making a call to the collector server.
func (b *HTTPBackend) Export(ctx context.Context, trace *Data) error {
	if b.url == "" {
		return nil
	}
	body, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", b.url+"/api/traces", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

func (b *HTTPBackend) Shutdown(ctx context.Context) error { return nil }
