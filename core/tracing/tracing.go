// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tracing

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowtel/flowtel/internal/base"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrPrefix   = "flowtel"
	spanKindAttr = attrPrefix + ":kind"
)

// PathSeparator joins the segments of an execution path for display,
// e.g. "testFlow > sub1 > sub2".
const PathSeparator = " > "

// A SpanKind classifies an instrumented call.
type SpanKind string

const (
	KindFlow     SpanKind = "flow"
	KindStep     SpanKind = "step"
	KindGenerate SpanKind = "generate"
)

// State holds the OpenTelemetry values used to create traces, together with
// the process-wide redaction policy. The policy is fixed when the State is
// constructed and never changes afterward.
type State struct {
	tp     *sdktrace.TracerProvider // references registered backends
	tracer trace.Tracer             // returned from tp.Tracer(), cached
	logIO  bool
}

type config struct {
	logInputAndOutput bool
	sampler           sdktrace.Sampler
}

// An Option configures a State at construction time.
type Option func(*config)

// WithLogInputAndOutput controls whether span input and output payloads are
// recorded on spans and emitted as Input/Output log lines. Payload logging
// is on by default. Config lines are emitted regardless of this setting.
func WithLogInputAndOutput(enabled bool) Option {
	return func(c *config) { c.logInputAndOutput = enabled }
}

// WithSampler sets the sampling policy for spans created through the
// State. The default samples everything.
func WithSampler(s sdktrace.Sampler) Option {
	return func(c *config) { c.sampler = s }
}

func NewState(opts ...Option) *State {
	c := &config{logInputAndOutput: true}
	for _, o := range opts {
		o(c)
	}
	var tpOpts []sdktrace.TracerProviderOption
	if c.sampler != nil {
		tpOpts = append(tpOpts, sdktrace.WithSampler(c.sampler))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &State{
		tp:     tp,
		tracer: tp.Tracer("flowtel-tracer", trace.WithInstrumentationVersion("v1")),
		logIO:  c.logInputAndOutput,
	}
}

// LogsInputAndOutput reports whether the state's redaction policy permits
// payload logging.
func (ts *State) LogsInputAndOutput() bool { return ts.logIO }

func (ts *State) RegisterSpanProcessor(sp sdktrace.SpanProcessor) {
	ts.tp.RegisterSpanProcessor(sp)
}

// WriteTelemetryImmediate registers backend to receive each span as soon as
// it finishes. Use this for a Backend with a fast Export method, such as
// the in-memory backend or one that writes to a local file.
func (ts *State) WriteTelemetryImmediate(backend Backend) {
	e := newBackendExporter(backend, 0)
	ts.RegisterSpanProcessor(sdktrace.NewSimpleSpanProcessor(e))
}

// BatchOptions configure batched span delivery.
type BatchOptions struct {
	// ExportInterval is how long the processor waits before exporting a
	// partial batch. Zero keeps the processor default.
	ExportInterval time.Duration
	// ExportTimeout bounds a single export call. Zero keeps the processor
	// default.
	ExportTimeout time.Duration
	// MaxRetries caps backend delivery retries per batch. Zero applies the
	// exporter's default backoff budget.
	MaxRetries uint64
}

// WriteTelemetryBatch registers backend to receive spans in batches.
// Use this for a Backend with a potentially expensive Export method, such
// as one that makes an RPC.
// Callers must invoke the returned function at the end of the program to
// flush the final batch and perform other cleanup.
func (ts *State) WriteTelemetryBatch(backend Backend, opts BatchOptions) (shutdown func(context.Context) error) {
	e := newBackendExporter(backend, opts.MaxRetries)
	var bopts []sdktrace.BatchSpanProcessorOption
	if opts.ExportInterval > 0 {
		bopts = append(bopts, sdktrace.WithBatchTimeout(opts.ExportInterval))
	}
	if opts.ExportTimeout > 0 {
		bopts = append(bopts, sdktrace.WithExportTimeout(opts.ExportTimeout))
	}
	ts.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(e, bopts...))
	return ts.tp.Shutdown
}

// Flush blocks until every span recorded so far has been handed to the
// registered backends. If timeout is positive and elapses first, Flush
// returns the flush error instead of hanging.
func (ts *State) Flush(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return ts.tp.ForceFlush(ctx)
}

// Shutdown flushes remaining spans and releases the tracer provider.
func (ts *State) Shutdown(ctx context.Context) error {
	return ts.tp.Shutdown(ctx)
}

// SpanMetadata configures the span created by RunInNewSpan.
type SpanMetadata struct {
	// Name is the span name; it becomes the final path segment.
	Name string
	// Kind classifies the call (flow, step, generate).
	Kind SpanKind
	// IsRoot marks a top-level invocation. A span with no instrumented
	// parent in its context is a root regardless of this field.
	IsRoot bool
	// Config is recorded on the span and logged regardless of the
	// redaction policy.
	Config any
	// Attributes are arbitrary key-value pairs set directly as span
	// attributes.
	Attributes map[string]string
}

// RunInNewSpan runs f on input in a new span with the provided metadata.
// The span's execution path is the parent's path plus one segment, carried
// in the returned context; sibling calls running in parallel each observe
// their own path.
//
// The span is finalized exactly once on every exit path: normal return,
// error return, or panic (re-raised after the span is marked failed).
// An error returned by f is returned to the caller unchanged.
func RunInNewSpan[I, O any](
	ctx context.Context,
	tstate *State,
	metadata *SpanMetadata,
	input I,
	f func(context.Context, I) (O, error),
) (O, error) {
	if metadata == nil {
		metadata = &SpanMetadata{}
	}

	parent := spanMetaKey.FromContext(ctx)
	sm := &spanMetadata{
		Name:   metadata.Name,
		Kind:   metadata.Kind,
		IsRoot: metadata.IsRoot || parent == nil,
		Input:  input,
		Config: metadata.Config,
	}
	var parentPath []string
	if parent != nil {
		parentPath = parent.Path
	}
	sm.Path = childPath(parentPath, metadata.Name)

	var opts []trace.SpanStartOption
	if metadata.Kind != "" {
		opts = append(opts, trace.WithAttributes(attribute.String(spanKindAttr, string(metadata.Kind))))
	}
	for k, v := range metadata.Attributes {
		opts = append(opts, trace.WithAttributes(attribute.String(k, v)))
	}

	ctx, span := tstate.tracer.Start(ctx, metadata.Name, opts...)
	defer span.End()
	// At the end, copy the spanMetadata to the OpenTelemetry span.
	defer func() { span.SetAttributes(sm.attributes(tstate.logIO)...) }()
	ctx = spanMetaKey.NewContext(ctx, sm)

	emitSpanStart(ctx, tstate, sm)

	// A panicking f must not leave the span open or unreported.
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			sm.setState(spanStateError)
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			if parent != nil {
				parent.noteChildFailure()
			}
			emitSpanEnd(ctx, tstate, sm, err)
			panic(r)
		}
	}()

	output, err := f(ctx, input)
	if err != nil {
		sm.setState(spanStateError)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		if parent != nil {
			parent.noteChildFailure()
		}
		emitSpanEnd(ctx, tstate, sm, err)
		return base.Zero[O](), err
	}
	sm.setState(spanStateSuccess)
	sm.Output = output
	emitSpanEnd(ctx, tstate, sm, nil)
	return output, nil
}

// childPath returns parent's segments with one more appended. The result
// never shares a backing array with the parent, so concurrent siblings
// cannot observe each other's segment.
func childPath(parent []string, segment string) []string {
	p := make([]string, 0, len(parent)+1)
	p = append(p, parent...)
	return append(p, segment)
}

// spanState is the completion status of a span.
// An empty spanState indicates that the span has not ended.
type spanState string

const (
	spanStateSuccess spanState = "success"
	spanStateError   spanState = "error"
)

// spanMetadata holds flowtel-specific information about one instrumented
// call.
type spanMetadata struct {
	Name   string
	Kind   SpanKind
	IsRoot bool
	Input  any
	Output any
	Config any
	Path   []string // segments, root first, this call last

	state       atomic.Value // spanState
	childFailed atomic.Bool

	mu    sync.Mutex
	attrs map[string]string
}

func (sm *spanMetadata) setState(s spanState) { sm.state.Store(s) }

func (sm *spanMetadata) currentState() spanState {
	if s, ok := sm.state.Load().(spanState); ok {
		return s
	}
	return ""
}

// noteChildFailure records that a nested instrumented call failed, so this
// span is not the failure source even if it ends with an error itself.
func (sm *spanMetadata) noteChildFailure() { sm.childFailed.Store(true) }

// isFailureSource reports whether this span failed on its own rather than
// by propagating a nested failure.
func (sm *spanMetadata) isFailureSource() bool {
	return sm.currentState() == spanStateError && !sm.childFailed.Load()
}

// DisplayPath renders the execution path with PathSeparator, root first.
func (sm *spanMetadata) DisplayPath() string {
	return strings.Join(sm.Path, PathSeparator)
}

// SetAttr sets an attribute, overwriting whatever is there.
func (sm *spanMetadata) SetAttr(k, v string) {
	if sm == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.attrs == nil {
		sm.attrs = map[string]string{}
	}
	sm.attrs[k] = v
}

// attributes returns the spanMetadata as OpenTelemetry attributes in the
// form the telemetry modules expect. Input and output are recorded only
// when the redaction policy permits.
func (sm *spanMetadata) attributes(logIO bool) []attribute.KeyValue {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	kvs := []attribute.KeyValue{
		attribute.String(attrPrefix+":name", sm.Name),
		attribute.String(attrPrefix+":path", sm.DisplayPath()),
		attribute.String(attrPrefix+":state", string(sm.currentState())),
	}
	if sm.Kind != "" {
		kvs = append(kvs, attribute.String(spanKindAttr, string(sm.Kind)))
	}
	if sm.Config != nil {
		kvs = append(kvs, attribute.String(attrPrefix+":config", base.JSONString(sm.Config)))
	}
	if logIO {
		kvs = append(kvs,
			attribute.String(attrPrefix+":input", base.JSONString(sm.Input)),
			attribute.String(attrPrefix+":output", base.JSONString(sm.Output)),
		)
	}
	if sm.IsRoot {
		kvs = append(kvs, attribute.Bool(attrPrefix+":isRoot", true))
	}
	if sm.isFailureSource() {
		kvs = append(kvs, attribute.Bool(attrPrefix+":isFailureSource", true))
	}
	for k, v := range sm.attrs {
		kvs = append(kvs, attribute.String(attrPrefix+":metadata:"+k, v))
	}
	return kvs
}

// spanMetaKey is for storing spanMetadatas in a context.
var spanMetaKey = base.NewContextKey[*spanMetadata]()

// SetCustomMetadataAttr records a key in the current span metadata.
func SetCustomMetadataAttr(ctx context.Context, key, value string) {
	spanMetaKey.FromContext(ctx).SetAttr(key, value)
}

// SpanPath returns the rendered execution path of the current span, or the
// empty string when called outside an instrumented call.
func SpanPath(ctx context.Context) string {
	if sm := spanMetaKey.FromContext(ctx); sm != nil {
		return sm.DisplayPath()
	}
	return ""
}

// errorTypeName returns the bare type name of err for the Error log line,
// e.g. "modelTimeout" for *modelTimeout.
func errorTypeName(err error) string {
	if err == nil {
		return ""
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
