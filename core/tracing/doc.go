// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package tracing wraps units of asynchronous work in execution spans and
delivers the finished spans to a pluggable backend.

An instrumented call tree is built with [RunFlow], [RunStep] and
[RunGenerate] (or the lower-level [RunInNewSpan]). Each call extends an
execution path carried in the context, e.g. "testFlow > sub1 > sub2", emits
leveled log lines describing the call's configuration, payloads and
outcome, and records a span that is handed asynchronously to the [Backend]
registered on the [State].

Payload (input/output) recording and logging is controlled by the state's
redaction policy, fixed at construction with [WithLogInputAndOutput].
Configuration is always recorded.

Use [State.Flush] as the synchronization point before querying a backend;
span export is otherwise fire-and-forget.
*/
package tracing
