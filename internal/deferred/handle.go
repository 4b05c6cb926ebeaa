package deferred

import "sync/atomic"

// Handle is the Go counterpart of lumen/rt/Deferred: a settle-once cell
// carrying either a value or a failure. Settling is first-writer-wins; late
// results are discarded, never observed.
type Handle struct {
	done     chan struct{}
	state    atomic.Uint32
	canceled atomic.Bool
	val      any
	err      error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Get blocks until the handle settles and returns its value or failure.
// Repeated calls return the same outcome.
func (h *Handle) Get() (any, error) {
	<-h.done
	return h.val, h.err
}

// Done exposes the settle signal for select-based waiting.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) settle(v any, err error) bool {
	if !h.state.CompareAndSwap(0, 1) {
		return false
	}
	h.val = v
	h.err = err
	close(h.done)
	return true
}

func (h *Handle) settled() bool { return h.state.Load() != 0 }

// cancel asks a computation that has not started to settle with ErrCanceled.
// Best-effort: a running body is never interrupted and a settled handle is
// unaffected. The pool consults the flag right before running a body.
func (h *Handle) cancel() { h.canceled.Store(true) }

func (h *Handle) cancelRequested() bool { return h.canceled.Load() }
