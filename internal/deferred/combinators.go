package deferred

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// AllOf settles with the values of every input handle, in input order, once
// all succeed. It is fail-fast: the first failure settles the combined
// handle immediately and the remaining inputs get a best-effort cancel.
// There is no partial result on failure.
func AllOf(handles ...*Handle) *Handle {
	out := newHandle()
	go func() {
		vals := make([]any, len(handles))
		g, ctx := errgroup.WithContext(context.Background())
		for i, h := range handles {
			g.Go(func() error {
				select {
				case <-h.Done():
				case <-ctx.Done():
					return context.Cause(ctx)
				}
				v, err := h.Get()
				if err != nil {
					return err
				}
				vals[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			for _, h := range handles {
				h.cancel()
			}
			out.settle(nil, err)
			return
		}
		out.settle(vals, nil)
	}()
	return out
}

// FirstOf settles with the first input handle to settle, value or failure.
// It returns as soon as the winner is known and signals the losers for
// best-effort cancellation, without waiting for acknowledgment: a loser
// whose body has not started settles with ErrCanceled, a running one
// finishes and has its result discarded.
func FirstOf(handles ...*Handle) *Handle {
	out := newHandle()
	for _, h := range handles {
		go func() {
			v, err := h.Get()
			// flag the others before publishing the winner; canceling an
			// already-settled handle is a no-op, so racing waiters are safe
			for _, loser := range handles {
				if loser != h {
					loser.cancel()
				}
			}
			out.settle(v, err)
		}()
	}
	return out
}
