// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stage names used in diagnostics and timeout reports.
const (
	StagePrecheck = "precheck"
	StageSplit    = "split"
	StageExtract  = "extract"
)

// TimeoutError reports a stage that exceeded its budget. It aborts only the
// current document.
type TimeoutError struct {
	Document string
	Stage    string
	Budget   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s stage exceeded %s", e.Document, e.Stage, e.Budget)
}

// StageError reports a panic recovered inside a stage.
type StageError struct {
	Document string
	Stage    string
	Value    any
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s stage panicked: %v", e.Document, e.Stage, e.Value)
}

type stageResult[T any] struct {
	val T
	err error
}

// runStage runs fn under its own deadline. When the deadline fires first,
// runStage stops waiting and returns a *TimeoutError; fn sees its context
// cancelled and its eventual result is discarded. A cancelled parent context
// is returned as is.
func runStage[T any](ctx context.Context, budget time.Duration, doc, stage string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	sctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan stageResult[T], 1)
	go func() {
		var r stageResult[T]
		defer func() {
			if v := recover(); v != nil {
				r = stageResult[T]{err: &StageError{Document: doc, Stage: stage, Value: v}}
			}
			done <- r
		}()
		r.val, r.err = fn(sctx)
	}()

	timedOut := func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Document: doc, Stage: stage, Budget: budget}
	}

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && sctx.Err() != nil {
			return timedOut()
		}
		return r.val, r.err
	case <-sctx.Done():
		return timedOut()
	}
}
