package deferred

import (
	"container/heap"
	"sync"
	"time"
)

// timerID identifies an armed deadline.
type timerID uint64

type timer struct {
	id        timerID
	deadline  time.Time
	fire      func()
	cancelled bool
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].id < h[j].id
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	t, ok := x.(*timer)
	if !ok || t == nil {
		return
	}
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	if n == 0 {
		return (*timer)(nil)
	}
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// timerWheel runs deadlines on its own goroutine. Keeping it off the worker
// pool means bounded-wait timeouts fire on schedule even when every worker
// is busy.
type timerWheel struct {
	mu     sync.Mutex
	heap   timerHeap
	byID   map[timerID]*timer
	nextID timerID
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

func newTimerWheel() *timerWheel {
	w := &timerWheel{
		byID:   make(map[timerID]*timer),
		nextID: 1,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// after arms fire to run once d elapses and returns a cancel func. Cancel
// after firing is a no-op.
func (w *timerWheel) after(d time.Duration, fire func()) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	t := &timer{id: id, deadline: time.Now().Add(d), fire: fire}
	w.byID[id] = t
	heap.Push(&w.heap, t)
	w.mu.Unlock()
	w.poke()
	return func() { w.cancel(id) }
}

func (w *timerWheel) cancel(id timerID) {
	w.mu.Lock()
	if t := w.byID[id]; t != nil {
		t.cancelled = true
		delete(w.byID, id)
	}
	w.mu.Unlock()
}

func (w *timerWheel) stop() {
	close(w.quit)
	<-w.done
}

func (w *timerWheel) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *timerWheel) loop() {
	defer close(w.done)
	sleeper := time.NewTimer(time.Hour)
	defer sleeper.Stop()
	for {
		next, ok := w.fireDue()
		if !sleeper.Stop() {
			select {
			case <-sleeper.C:
			default:
			}
		}
		if ok {
			sleeper.Reset(time.Until(next))
		} else {
			sleeper.Reset(time.Hour)
		}
		select {
		case <-w.quit:
			return
		case <-w.wake:
		case <-sleeper.C:
		}
	}
}

// fireDue runs every expired timer and reports the next pending deadline.
func (w *timerWheel) fireDue() (time.Time, bool) {
	now := time.Now()
	var due []*timer
	w.mu.Lock()
	for len(w.heap) > 0 {
		t := w.heap[0]
		if t.cancelled {
			heap.Pop(&w.heap)
			continue
		}
		if t.deadline.After(now) {
			break
		}
		heap.Pop(&w.heap)
		delete(w.byID, t.id)
		due = append(due, t)
	}
	var next time.Time
	ok := len(w.heap) > 0
	if ok {
		next = w.heap[0].deadline
	}
	w.mu.Unlock()
	for _, t := range due {
		t.fire()
	}
	return next, ok
}
