// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package tracing

import (
	"context"
	"fmt"

	"github.com/flowtel/flowtel/core/logger"
	"github.com/flowtel/flowtel/internal/base"
)

// Span lifecycle log lines, kept bit-compatible with downstream log
// parsers:
//
//	[<level>] <Kind>[<path>, <extra>]
//
// Kind is one of Paths, Config, Input, Output, Error. Config lines are
// always emitted for generate calls; Input and Output lines are suppressed
// entirely when the redaction policy disables payload logging.
//
// Because these lines are written synchronously from the call tree, a
// span's start lines precede every line of its children, and its completion
// line follows theirs.

func emitSpanStart(ctx context.Context, tstate *State, sm *spanMetadata) {
	log := logger.FromContext(ctx)
	path := sm.DisplayPath()
	switch {
	case sm.Kind == KindGenerate:
		log.Info(fmt.Sprintf("Config[%s, %s]", path, sm.Name),
			"config", base.JSONString(sm.Config))
		if tstate.logIO && sm.Input != nil {
			log.Info(fmt.Sprintf("Input[%s, %s]", path, sm.Name),
				"content", base.JSONString(sm.Input))
		}
	case sm.IsRoot:
		if tstate.logIO && sm.Input != nil {
			log.Info(fmt.Sprintf("Input[%s, %s]", path, sm.Name),
				"content", base.JSONString(sm.Input))
		}
	}
}

func emitSpanEnd(ctx context.Context, tstate *State, sm *spanMetadata, err error) {
	log := logger.FromContext(ctx)
	path := sm.DisplayPath()
	if err != nil {
		// Only the failure source logs; ancestors merely propagate the
		// same error and would duplicate the line.
		if sm.isFailureSource() {
			log.Error(fmt.Sprintf("Error[%s, %s] %s", path, errorTypeName(err), err.Error()))
		}
	} else if tstate.logIO && sm.Output != nil && (sm.Kind == KindGenerate || sm.IsRoot) {
		log.Info(fmt.Sprintf("Output[%s, %s]", path, sm.Name),
			"content", base.JSONString(sm.Output))
	}
	if sm.IsRoot && sm.Kind == KindFlow {
		log.Info(fmt.Sprintf("Paths[%s]", path))
	}
}
