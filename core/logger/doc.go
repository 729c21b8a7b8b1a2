// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides context-scoped structured logging for flowtel.

This package wraps the standard library's [log/slog] package. Logs emitted
while a flow runs are associated with the flow's context:

	func myFlow(ctx context.Context, input string) (string, error) {
		log := logger.FromContext(ctx)
		log.Info("processing input", "size", len(input))
		...
	}

The package-level [Handler] renders records and tees a copy of each one to
every sink registered with [AddSink]. Sinks are how tests observe the log
lines the tracing pipeline emits; when no sinks are registered the handler
behaves exactly like its base handler.

Use [SetLevel] to control the minimum level process-wide.
*/
package logger
