// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func discardLogger() *slog.Logger {
	return slog.New(NewHandler(slog.NewTextHandler(io.Discard, nil)))
}

func TestFromContext(t *testing.T) {
	l := discardLogger()
	ctx := WithContext(context.Background(), l)
	if got := FromContext(ctx); got != l {
		t.Errorf("got %v, want %v", got, l)
	}
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Errorf("got %v, want the default logger", got)
	}
}

func TestRecordLine(t *testing.T) {
	for _, test := range []struct {
		level slog.Level
		msg   string
		want  string
	}{
		{slog.LevelInfo, "Paths[testFlow]", "[info] Paths[testFlow]"},
		{slog.LevelError, "Error[testFlow, badInput] boom", "[error] Error[testFlow, badInput] boom"},
		{slog.LevelDebug, "noted", "[debug] noted"},
		{slog.LevelWarn, "careful", "[warn] careful"},
	} {
		got := Record{Level: test.level, Message: test.msg}.Line()
		if got != test.want {
			t.Errorf("got %q, want %q", got, test.want)
		}
	}
}

func TestSinkReceivesRecords(t *testing.T) {
	sink := &SliceSink{}
	AddSink(sink)
	defer RemoveSink(sink)

	l := discardLogger()
	l.Info("Output[testFlow, testFlow]", "content", "42")
	l.Error("Error[testFlow, badInput] bad")

	got := sink.Lines()
	want := []string{
		"[info] Output[testFlow, testFlow]",
		"[error] Error[testFlow, badInput] bad",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want, +got):\n%s", diff)
	}

	recs := sink.Records()
	if g, w := recs[0].Attrs["content"], "42"; g != w {
		t.Errorf("got content %v, want %v", g, w)
	}

	sink.Reset()
	if got := sink.Lines(); len(got) != 0 {
		t.Errorf("got %v after reset, want empty", got)
	}
}

func TestRemoveSink(t *testing.T) {
	sink := &SliceSink{}
	AddSink(sink)
	RemoveSink(sink)

	discardLogger().Info("dropped")
	if got := sink.Lines(); len(got) != 0 {
		t.Errorf("got %v after removal, want empty", got)
	}
}

func TestLevelFilter(t *testing.T) {
	SetLevel(slog.LevelWarn)
	defer SetLevel(slog.LevelInfo)

	sink := &SliceSink{}
	AddSink(sink)
	defer RemoveSink(sink)

	l := discardLogger()
	l.Info("quiet")
	l.Warn("loud")

	got := sink.Lines()
	want := []string{"[warn] loud"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want, +got):\n%s", diff)
	}
}

func TestConcurrentSinks(t *testing.T) {
	sink := &SliceSink{}
	AddSink(sink)
	defer RemoveSink(sink)

	l := discardLogger()
	var wg sync.WaitGroup
	const n = 20
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Info(fmt.Sprintf("msg-%d", i))
		}()
	}
	wg.Wait()

	if got := len(sink.Records()); got != n {
		t.Errorf("got %d records, want %d", got, n)
	}
}

func TestHandlerWithAttrs(t *testing.T) {
	sink := &SliceSink{}
	AddSink(sink)
	defer RemoveSink(sink)

	l := discardLogger().With("model", "testModel")
	l.Info("Config[testFlow, testModel]", "path", "testFlow")

	recs := sink.Records()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	// Pre-bound attrs reach the sink alongside the call's own attrs.
	want := map[string]any{
		"model": "testModel",
		"path":  "testFlow",
	}
	if diff := cmp.Diff(want, recs[0].Attrs); diff != "" {
		t.Errorf("attrs mismatch (-want, +got):\n%s", diff)
	}
}

func TestHandlerWithGroup(t *testing.T) {
	sink := &SliceSink{}
	AddSink(sink)
	defer RemoveSink(sink)

	l := discardLogger().WithGroup("req").With("id", "7")
	l.Info("handled", "n", 1)

	recs := sink.Records()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	want := map[string]any{
		"req.id": "7",
		"req.n":  int64(1),
	}
	if diff := cmp.Diff(want, recs[0].Attrs); diff != "" {
		t.Errorf("attrs mismatch (-want, +got):\n%s", diff)
	}
}
