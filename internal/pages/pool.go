// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pages

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned when work is submitted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// DefaultPoolSize is one less than the number of cores, and at least one.
func DefaultPoolSize() int {
	return max(1, runtime.NumCPU()-1)
}

// PageOutcome is the result of one page task. Index ties it to its page
// regardless of the order in which tasks complete.
type PageOutcome struct {
	Index int
	Data  []byte // single-page PDF, from split tasks
	Text  string // page text, from extraction tasks
	Err   error  // failure marker for this page only
}

// PageTask processes page index (1-based).
type PageTask func(ctx context.Context, index int) PageOutcome

type job struct {
	ctx context.Context
	run func(context.Context)
}

// Pool is a fixed set of workers created once per corpus run and shared by
// the split and extraction stages of every document.
type Pool struct {
	jobs   chan job
	g      errgroup.Group
	size   int
	closed atomic.Bool
}

// NewPool starts size workers; size < 1 means DefaultPoolSize.
func NewPool(size int) *Pool {
	if size < 1 {
		size = DefaultPoolSize()
	}
	p := &Pool{jobs: make(chan job), size: size}
	for range size {
		p.g.Go(p.work)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

func (p *Pool) work() error {
	for j := range p.jobs {
		// Work queued for a document that has since been abandoned is dropped.
		if j.ctx.Err() != nil {
			continue
		}
		// A task that ignores its context keeps running on its own goroutine;
		// the worker returns to the queue as soon as the document is abandoned.
		done := make(chan struct{})
		go func() {
			defer close(done)
			j.run(j.ctx)
		}()
		select {
		case <-done:
		case <-j.ctx.Done():
		}
	}
	return nil
}

// FanOut runs task for pages 1..n on the pool and calls collect on the
// calling goroutine for each outcome as it arrives. It returns once every
// page has been collected, or with ctx.Err() as soon as ctx ends; in the
// latter case tasks still in flight finish into a buffered channel nobody
// reads, and the workers running them are released at once. A task panic becomes that page's Err.
func (p *Pool) FanOut(ctx context.Context, n int, task PageTask, collect func(PageOutcome) error) error {
	if n <= 0 {
		return nil
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}

	// Leaving early for any reason cancels the tasks not yet started.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan PageOutcome, n)
	for i := 1; i <= n; i++ {
		index := i
		run := func(ctx context.Context) {
			out := PageOutcome{Index: index}
			defer func() {
				if r := recover(); r != nil {
					out = PageOutcome{Index: index, Err: fmt.Errorf("page %d: panic: %v", index, r)}
				}
				results <- out
			}()
			out = task(ctx, index)
			out.Index = index
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case p.jobs <- job{ctx: ctx, run: run}:
		}
	}

	for received := 0; received < n; received++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out := <-results:
			if err := collect(out); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close stops the workers after the queued work drains. The coordinator
// calls it once, after its last FanOut returned.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	close(p.jobs)
	return p.g.Wait()
}
