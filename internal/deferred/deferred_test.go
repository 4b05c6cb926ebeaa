package deferred

import (
	"errors"
	"testing"
	"time"
)

func sleepFn(d time.Duration, v any) Fn {
	return func() (any, error) {
		time.Sleep(d)
		return v, nil
	}
}

func TestBoundedWaitLetsFastWorkFinish(t *testing.T) {
	r := NewRuntime(2)
	defer r.Close()

	h := r.Within(50*time.Millisecond, sleepFn(30*time.Millisecond, 7))
	v, err := h.Get()
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if v != 7 {
		t.Fatalf("value = %v, want 7", v)
	}
}

func TestBoundedWaitTimesOutSlowWork(t *testing.T) {
	r := NewRuntime(2)
	defer r.Close()

	h := r.Within(50*time.Millisecond, sleepFn(100*time.Millisecond, 7))
	start := time.Now()
	_, err := h.Get()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 90*time.Millisecond {
		t.Fatalf("timeout delivered after %v, body was not raced", elapsed)
	}
}

func TestSaturatedPoolDoesNotStarveTimeouts(t *testing.T) {
	r := NewRuntime(1)
	defer r.Close()

	block := make(chan struct{})
	r.Spawn(func() (any, error) {
		<-block
		return nil, nil
	})
	defer close(block)

	// the single worker is held hostage, so the body never starts; the
	// deadline must still fire on schedule from the timer goroutine
	h := r.Within(40*time.Millisecond, sleepFn(time.Millisecond, 1))
	start := time.Now()
	_, err := h.Get()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("timeout starved by pool saturation: %v", elapsed)
	}
}

func TestAllOfPreservesInputOrder(t *testing.T) {
	r := NewRuntime(4)
	defer r.Close()

	a := r.Spawn(sleepFn(30*time.Millisecond, "a"))
	b := r.Spawn(sleepFn(5*time.Millisecond, "b"))
	c := r.Spawn(sleepFn(15*time.Millisecond, "c"))

	v, err := AllOf(a, b, c).Get()
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	vals, ok := v.([]any)
	if !ok || len(vals) != 3 {
		t.Fatalf("combined value = %#v", v)
	}
	if vals[0] != "a" || vals[1] != "b" || vals[2] != "c" {
		t.Fatalf("order not preserved: %v", vals)
	}
}

func TestAllOfIsFailFast(t *testing.T) {
	r := NewRuntime(4)
	defer r.Close()

	boom := errors.New("boom")
	slow := r.Spawn(sleepFn(500*time.Millisecond, "slow"))
	bad := r.Spawn(func() (any, error) {
		time.Sleep(10 * time.Millisecond)
		return nil, boom
	})

	start := time.Now()
	_, err := AllOf(slow, bad).Get()
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Fatalf("failure waited for the slow sibling: %v", elapsed)
	}
}

func TestFirstOfReturnsTheFastestResult(t *testing.T) {
	r := NewRuntime(4)
	defer r.Close()

	slow := r.Spawn(sleepFn(200*time.Millisecond, "slow"))
	fast := r.Spawn(sleepFn(10*time.Millisecond, "fast"))

	start := time.Now()
	v, err := FirstOf(slow, fast).Get()
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if v != "fast" {
		t.Fatalf("value = %v, want fast", v)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("first-of waited for the loser: %v", elapsed)
	}
}

func TestFirstOfCancelsQueuedLosers(t *testing.T) {
	r := NewRuntime(1)
	defer r.Close()

	gate := make(chan struct{})
	fast := r.Spawn(func() (any, error) { return "fast", nil })
	// hold the single worker so the loser stays queued until the winner
	// has been published and the cancel signal has landed
	r.Spawn(func() (any, error) {
		<-gate
		return nil, nil
	})
	slow := r.Spawn(sleepFn(time.Second, "slow"))

	v, err := FirstOf(fast, slow).Get()
	if err != nil || v != "fast" {
		t.Fatalf("winner = %v, %v", v, err)
	}
	close(gate)

	start := time.Now()
	if _, err := slow.Get(); !errors.Is(err, ErrCanceled) {
		t.Fatalf("loser settled with %v, want ErrCanceled", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("canceled loser ran its body anyway: %v", elapsed)
	}
}

func TestPanicSettlesAsFailure(t *testing.T) {
	r := NewRuntime(1)
	defer r.Close()

	h := r.Spawn(func() (any, error) { panic("kaboom") })
	_, err := h.Get()
	if err == nil {
		t.Fatal("panic did not settle as a failure")
	}
}

func TestCloseFailsQueuedWork(t *testing.T) {
	r := NewRuntime(1)
	block := make(chan struct{})
	r.Spawn(func() (any, error) {
		<-block
		return nil, nil
	})
	queued := r.Spawn(sleepFn(0, 1))
	close(block)
	r.Close()

	if _, err := queued.Get(); err != nil && !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed or success", err)
	}
}

func TestRepeatedGetReturnsSameOutcome(t *testing.T) {
	r := NewRuntime(2)
	defer r.Close()

	h := r.Spawn(sleepFn(time.Millisecond, 42))
	v1, _ := h.Get()
	v2, _ := h.Get()
	if v1 != v2 || v1 != 42 {
		t.Fatalf("got %v then %v", v1, v2)
	}
}
