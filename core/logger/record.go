// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// A Record is one emitted log line, frozen at emission time. Attrs holds
// both the attrs pre-bound on the logger and the call's own attrs; keys
// inside slog groups are dot-qualified, e.g. "req.id".
type Record struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Line renders the record in the "[level] message" form that downstream log
// parsers expect. The level is rendered lower-case.
func (r Record) Line() string {
	return fmt.Sprintf("[%s] %s", strings.ToLower(r.Level.String()), r.Message)
}

// A Sink receives a copy of every record emitted through flowtel handlers.
// Sinks exist so that tests can observe log output without real I/O; they
// do not alter what the base handler writes.
type Sink interface {
	Write(Record)
}

// A SliceSink is an in-memory Sink. Safe for concurrent use.
type SliceSink struct {
	mu      sync.Mutex
	records []Record
}

func (s *SliceSink) Write(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Records returns a point-in-time snapshot of everything written so far.
func (s *SliceSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Lines returns the rendered form of every record written so far,
// in emission order.
func (s *SliceSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]string, len(s.records))
	for i, r := range s.records {
		lines[i] = r.Line()
	}
	return lines
}

// Reset discards all buffered records.
func (s *SliceSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}
