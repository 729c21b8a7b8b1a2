// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// The telemetry package wires the flowtel tracing pipeline together:
// the log handler, the meter provider, span processors and the export-side
// metric modules.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowtel/flowtel/core/logger"
	"github.com/flowtel/flowtel/core/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options configures Init. The zero value is a production configuration
// with no backend: spans are recorded but not delivered anywhere.
type Options struct {
	// ForceDevExport exports spans synchronously and eagerly, and dumps
	// them to stdout, for local development.
	ForceDevExport bool
	// MetricExportIntervalMillis is the cadence of periodic metric export.
	// Zero picks 5s in dev mode and 300s otherwise.
	MetricExportIntervalMillis int
	// MetricExportTimeoutMillis is the per-export deadline, also used as
	// the default flush timeout. Zero picks 60s.
	MetricExportTimeoutMillis int
	// DisableLoggingIO stops input and output payloads from being logged
	// or recorded on spans. Config lines are still emitted.
	DisableLoggingIO bool
	// ExportMaxRetries caps backend delivery retries per trace. Zero
	// applies the exporter's default backoff budget.
	ExportMaxRetries uint64
	// Backend receives finished traces. May be nil.
	Backend tracing.Backend
	// Sampler overrides the span sampling policy. When nil, every span is
	// sampled.
	Sampler sdktrace.Sampler
	// MetricExporter overrides the metric export destination. When nil,
	// dev mode falls back to a stdout exporter and production mode skips
	// metric export entirely.
	MetricExporter sdkmetric.Exporter
	// LogHandler is the base slog handler. When nil, a text handler on
	// stderr is used.
	LogHandler slog.Handler
}

// Pipeline is an initialized telemetry pipeline. All spans created through
// its State flow through the configured modules and backend.
type Pipeline struct {
	State *tracing.State

	backend      tracing.Backend
	mp           *sdkmetric.MeterProvider
	flushTimeout time.Duration
}

// Init builds a telemetry pipeline from opts. It installs the flowtel log
// handler as the process default logger and, when metric export is
// configured, the global meter provider. Call it once, at startup, before
// running any flow.
func Init(opts *Options) (*Pipeline, error) {
	if opts == nil {
		opts = &Options{}
	}

	logger.SetDefault(opts.LogHandler)

	metricInterval := 300 * time.Second
	if opts.ForceDevExport {
		metricInterval = 5 * time.Second
	}
	if opts.MetricExportIntervalMillis > 0 {
		metricInterval = time.Duration(opts.MetricExportIntervalMillis) * time.Millisecond
	}
	exportTimeout := 60 * time.Second
	if opts.MetricExportTimeoutMillis > 0 {
		exportTimeout = time.Duration(opts.MetricExportTimeoutMillis) * time.Millisecond
	}

	mexp := opts.MetricExporter
	if mexp == nil && opts.ForceDevExport {
		e, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: create stdout metric exporter: %w", err)
		}
		mexp = e
	}
	var mp *sdkmetric.MeterProvider
	if mexp != nil {
		reader := sdkmetric.NewPeriodicReader(mexp,
			sdkmetric.WithInterval(metricInterval),
			sdkmetric.WithTimeout(exportTimeout))
		mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)
	}

	// Modules bind their instruments at construction, so they must come
	// after the meter provider is installed.
	modules := []Module{
		NewFlowMetrics(),
		NewGenerateMetrics(),
		NewPathMetrics(),
	}

	sopts := []tracing.Option{tracing.WithLogInputAndOutput(!opts.DisableLoggingIO)}
	if opts.Sampler != nil {
		sopts = append(sopts, tracing.WithSampler(opts.Sampler))
	}
	state := tracing.NewState(sopts...)
	exporter := newAdjustingExporter(
		tracing.NewBackendExporter(opts.Backend, opts.ExportMaxRetries),
		modules,
		!opts.DisableLoggingIO,
	)

	if opts.ForceDevExport {
		state.RegisterSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter))
		stdout, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: create stdout trace exporter: %w", err)
		}
		state.RegisterSpanProcessor(sdktrace.NewSimpleSpanProcessor(stdout))
	} else {
		state.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithExportTimeout(exportTimeout)))
	}

	return &Pipeline{
		State:        state,
		backend:      opts.Backend,
		mp:           mp,
		flushTimeout: exportTimeout,
	}, nil
}

// Flush blocks until every span and metric recorded so far has been handed
// to the configured exporters, or until the pipeline's flush timeout
// elapses, in which case the flush error is returned.
func (p *Pipeline) Flush(ctx context.Context) error {
	if err := p.State.Flush(ctx, p.flushTimeout); err != nil {
		return fmt.Errorf("telemetry: flush spans: %w", err)
	}
	if p.mp != nil {
		if err := p.mp.ForceFlush(ctx); err != nil {
			return fmt.Errorf("telemetry: flush metrics: %w", err)
		}
	}
	return nil
}

// Shutdown flushes and releases the pipeline. The pipeline must not be
// used afterward.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	err := p.State.Shutdown(ctx)
	if p.mp != nil {
		if merr := p.mp.Shutdown(ctx); err == nil {
			err = merr
		}
	}
	return err
}

// HandleShutdownSignals installs a handler that flushes the pipeline and
// exits when the process receives SIGINT or SIGTERM.
func (p *Pipeline) HandleShutdownSignals() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		slog.Info("received shutdown signal, flushing telemetry")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
		os.Exit(0)
	}()
}
