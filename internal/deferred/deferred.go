// Package deferred is the reference implementation of the runtime contract
// that generated code targets on the managed host (lumen/rt/Deferred). It
// exists so the contract's semantics are testable from Go: a shared worker
// pool runs spawned computations, a dedicated timer scheduler fires
// bounded-wait deadlines, and the all-of / first-of combinators behave
// exactly as the emitted call sites assume.
package deferred

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ErrTimeout is the failure a bounded-wait handle settles with when the
// bound elapses before the body completes.
var ErrTimeout = errors.New("deferred: bounded wait timed out")

// ErrClosed is returned by handles spawned on a runtime that is shutting
// down.
var ErrClosed = errors.New("deferred: runtime closed")

// ErrCanceled is the failure a handle settles with when a combinator
// cancels it before its body started.
var ErrCanceled = errors.New("deferred: canceled")

// Fn is a spawned computation. It corresponds to the host runtime's
// zero-argument callable.
type Fn func() (any, error)

// Runtime owns the worker pool and the timer scheduler. A single Runtime is
// shared by all handles it spawns; Close stops both and fails any work that
// has not started yet.
type Runtime struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*task
	closed bool

	workers int
	wg      sync.WaitGroup
	timers  *timerWheel
}

type task struct {
	fn Fn
	h  *Handle
}

// NewRuntime starts a runtime with the given number of pool workers.
// Non-positive counts fall back to GOMAXPROCS.
func NewRuntime(workers int) *Runtime {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	r := &Runtime{workers: workers}
	r.cond = sync.NewCond(&r.mu)
	r.timers = newTimerWheel()
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

// Close stops the timer scheduler and the workers. Queued tasks that have
// not started settle with ErrClosed; tasks already running finish normally.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	pending := r.queue
	r.queue = nil
	r.cond.Broadcast()
	r.mu.Unlock()

	for _, t := range pending {
		t.h.settle(nil, ErrClosed)
	}
	r.timers.stop()
	r.wg.Wait()
}

// Spawn schedules fn on the pool and returns its handle immediately.
func (r *Runtime) Spawn(fn Fn) *Handle {
	h := newHandle()
	r.enqueue(&task{fn: fn, h: h})
	return h
}

// Within schedules fn on the pool and arms a deadline on the timer
// scheduler. Whichever settles first wins: the body's result, or ErrTimeout.
// The deadline fires from the scheduler's own goroutine, so a saturated pool
// cannot delay timeout delivery. The losing body is abandoned, not
// interrupted.
func (r *Runtime) Within(bound time.Duration, fn Fn) *Handle {
	h := newHandle()
	cancel := r.timers.after(bound, func() {
		h.settle(nil, ErrTimeout)
	})
	r.enqueue(&task{h: h, fn: func() (any, error) {
		defer cancel()
		return fn()
	}})
	return h
}

func (r *Runtime) enqueue(t *task) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		t.h.settle(nil, ErrClosed)
		return
	}
	r.queue = append(r.queue, t)
	r.cond.Signal()
	r.mu.Unlock()
}

func (r *Runtime) worker() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		t := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		run(t)
	}
}

// run executes one task, converting a panic into a settled failure the same
// way the host runtime wraps an uncaught exception.
func run(t *task) {
	defer func() {
		if p := recover(); p != nil {
			t.h.settle(nil, fmt.Errorf("deferred: computation panicked: %v", p))
		}
	}()
	if t.h.settled() {
		// a bounded-wait deadline already fired; do not pay for the body
		return
	}
	if t.h.cancelRequested() {
		t.h.settle(nil, ErrCanceled)
		return
	}
	v, err := t.fn()
	t.h.settle(v, err)
}
