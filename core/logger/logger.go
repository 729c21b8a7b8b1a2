// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"context"
	"log/slog"

	"github.com/flowtel/flowtel/internal/base"
)

var loggerKey = base.NewContextKey[*slog.Logger]()

// level is the minimum level honored by flowtel handlers. It is shared by
// every Handler so that SetLevel takes effect process-wide.
var level slog.LevelVar

// WithContext returns ctx augmented with the given logger.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return loggerKey.NewContext(ctx, l)
}

// FromContext returns the Logger in ctx, or the default Logger
// if there is none.
func FromContext(ctx context.Context) *slog.Logger {
	if l := loggerKey.FromContext(ctx); l != nil {
		return l
	}
	return slog.Default()
}

// SetLevel sets the minimum level emitted by flowtel handlers.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// GetLevel returns the current minimum level.
func GetLevel() slog.Level {
	return level.Level()
}
