// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/jba/slog/withsupport"
)

var (
	sinkMu sync.Mutex
	sinks  []Sink
)

// AddSink registers a sink to receive a copy of every record emitted through
// flowtel handlers. Safe to call from concurrently running call chains.
func AddSink(s Sink) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sinks = append(sinks, s)
}

// RemoveSink unregisters a previously added sink.
func RemoveSink(s Sink) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sinks = slices.DeleteFunc(sinks, func(x Sink) bool { return x == s })
}

func currentSinks() []Sink {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	return slices.Clone(sinks)
}

// Handler is the flowtel slog.Handler. It filters records by the package
// level, forwards them to a base handler, and tees a frozen copy to every
// registered sink.
type Handler struct {
	base slog.Handler
	goa  *withsupport.GroupOrAttrs
}

// NewHandler returns a Handler writing to base. A nil base falls back to a
// text handler on stderr.
func NewHandler(base slog.Handler) *Handler {
	if base == nil {
		base = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})
	}
	return &Handler{base: base}
}

// SetDefault installs a Handler writing to base as the process default
// logger.
func SetDefault(base slog.Handler) {
	slog.SetDefault(slog.New(NewHandler(base)))
}

func (h *Handler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= GetLevel()
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		base: h.base.WithAttrs(attrs),
		goa:  h.goa.WithAttrs(attrs),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		base: h.base.WithGroup(name),
		goa:  h.goa.WithGroup(name),
	}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if ss := currentSinks(); len(ss) > 0 {
		rec := Record{Time: r.Time, Level: r.Level, Message: r.Message}
		add := func(groups []string, a slog.Attr) {
			if rec.Attrs == nil {
				rec.Attrs = make(map[string]any)
			}
			key := a.Key
			if len(groups) > 0 {
				key = strings.Join(groups, ".") + "." + key
			}
			rec.Attrs[key] = a.Value.Resolve().Any()
		}
		// Attrs pre-bound with Logger.With land first, qualified by their
		// enclosing groups; the record's own attrs belong to every open
		// group.
		groups := h.goa.Apply(add)
		r.Attrs(func(a slog.Attr) bool {
			add(groups, a)
			return true
		})
		for _, s := range ss {
			s.Write(rec)
		}
	}
	return h.base.Handle(ctx, r)
}
