package runloop

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestWaker(t *testing.T) *Waker {
	t.Helper()
	w, err := newWaker(defaultNestedPumpInterval)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWaker_PollReturnsImmediately(t *testing.T) {
	t.Parallel()

	w := newTestWaker(t)
	w.ArmPoll()
	start := time.Now()
	woke, err := w.Wait(start)
	if err != nil {
		t.Fatal(err)
	}
	if woke {
		t.Error("poll wait reported a wake signal")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("poll wait blocked for %v", elapsed)
	}
}

func TestWaker_WakeEndsWait(t *testing.T) {
	t.Parallel()

	w := newTestWaker(t)
	w.ArmWait()

	go func() {
		time.Sleep(10 * time.Millisecond)
		if err := w.Wake(); err != nil {
			t.Error(err)
		}
	}()

	woke, err := w.Wait(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !woke {
		t.Error("wait ended without a wake signal")
	}
}

// TestWaker_WakeBeforeWait verifies the no-lost-wake property: a wake
// issued before the owner blocks still ends the next wait.
func TestWaker_WakeBeforeWait(t *testing.T) {
	t.Parallel()

	w := newTestWaker(t)
	if err := w.Wake(); err != nil {
		t.Fatal(err)
	}
	w.ArmWait()
	woke, err := w.Wait(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !woke {
		t.Error("pre-issued wake was lost")
	}
}

// TestWaker_ConcurrentWakes hammers Wake from many goroutines against a
// waiting owner; every wait must end, none may error, and the pending flag
// must dedupe rather than wedge.
func TestWaker_ConcurrentWakes(t *testing.T) {
	t.Parallel()

	w := newTestWaker(t)

	const producers = 8
	const rounds = 50
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if err := w.Wake(); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	w.ArmWait()
	for i := 0; i < rounds; i++ {
		if _, err := w.Wait(time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	close(done)
	wg.Wait()
}

func TestWaker_ArmUntil(t *testing.T) {
	t.Parallel()

	t.Run("times out at the deadline", func(t *testing.T) {
		t.Parallel()
		w := newTestWaker(t)
		now := time.Now()
		w.ArmUntil(now.Add(20 * time.Millisecond))
		woke, err := w.Wait(now)
		if err != nil {
			t.Fatal(err)
		}
		if woke {
			t.Error("timed-out wait reported a wake signal")
		}
		if elapsed := time.Since(now); elapsed < 15*time.Millisecond {
			t.Errorf("wait returned after %v, before the deadline", elapsed)
		}
	})

	t.Run("past deadline returns immediately", func(t *testing.T) {
		t.Parallel()
		w := newTestWaker(t)
		now := time.Now()
		w.ArmUntil(now.Add(-time.Second))
		start := time.Now()
		woke, err := w.Wait(now)
		if err != nil {
			t.Fatal(err)
		}
		if woke {
			t.Error("expired wait reported a wake signal")
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("expired wait blocked for %v", elapsed)
		}
	})

	t.Run("wake preempts the deadline", func(t *testing.T) {
		t.Parallel()
		w := newTestWaker(t)
		now := time.Now()
		w.ArmUntil(now.Add(10 * time.Second))
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = w.Wake()
		}()
		woke, err := w.Wait(now)
		if err != nil {
			t.Fatal(err)
		}
		if !woke {
			t.Error("wait ran to the deadline despite a wake")
		}
		if elapsed := time.Since(now); elapsed > 5*time.Second {
			t.Errorf("wake took %v to end the wait", elapsed)
		}
	})
}

// TestWaker_NestedPumpClampsWait verifies that an otherwise-indefinite
// wait returns within the nested-pump interval while the clamp is active.
func TestWaker_NestedPumpClampsWait(t *testing.T) {
	t.Parallel()

	w := newTestWaker(t)
	w.ArmWait()
	w.EnterNestedPump()
	defer w.ExitNestedPump()

	start := time.Now()
	woke, err := w.Wait(start)
	if err != nil {
		t.Fatal(err)
	}
	if woke {
		t.Error("clamped wait reported a wake signal")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("clamped wait blocked for %v", elapsed)
	}
}

func TestWaker_WithNestedPump(t *testing.T) {
	t.Parallel()

	w := newTestWaker(t)

	t.Run("restores on return", func(t *testing.T) {
		w.WithNestedPump(func() {
			if w.nested != 1 {
				t.Errorf("nested = %d inside pump", w.nested)
			}
		})
		if w.nested != 0 {
			t.Errorf("nested = %d after pump", w.nested)
		}
	})

	t.Run("restores on panic", func(t *testing.T) {
		func() {
			defer func() {
				if recover() == nil {
					t.Error("panic did not propagate")
				}
			}()
			w.WithNestedPump(func() { panic("pump failed") })
		}()
		if w.nested != 0 {
			t.Errorf("nested = %d after panicking pump", w.nested)
		}
	})

	t.Run("calls nest", func(t *testing.T) {
		w.WithNestedPump(func() {
			w.WithNestedPump(func() {
				if w.nested != 2 {
					t.Errorf("nested = %d at depth two", w.nested)
				}
			})
			if w.nested != 1 {
				t.Errorf("nested = %d after inner pump", w.nested)
			}
		})
	})
}

// TestWaker_NestedPumpTimeout verifies that ArmUntil deadlines shorter
// than the clamp interval still win.
func TestWaker_NestedPumpTimeout(t *testing.T) {
	t.Parallel()

	w, err := newWaker(50 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	now := time.Now()
	w.EnterNestedPump()
	defer w.ExitNestedPump()

	w.ArmWait()
	if got := w.timeout(now); got != 50*time.Millisecond {
		t.Errorf("clamped Wait timeout = %v", got)
	}
	w.ArmUntil(now.Add(10 * time.Millisecond))
	if got := w.timeout(now); got != 10*time.Millisecond {
		t.Errorf("near WaitUntil timeout = %v", got)
	}
	w.ArmUntil(now.Add(time.Minute))
	if got := w.timeout(now); got != 50*time.Millisecond {
		t.Errorf("far WaitUntil timeout = %v", got)
	}
	w.ArmPoll()
	if got := w.timeout(now); got != 0 {
		t.Errorf("poll timeout = %v", got)
	}
}

func TestWaker_Close(t *testing.T) {
	t.Parallel()

	w, err := newWaker(defaultNestedPumpInterval)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := w.Wake(); !errors.Is(err, ErrTerminated) {
		t.Errorf("wake after close: %v, want ErrTerminated", err)
	}
}

func TestWaitMillis(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		timeout time.Duration
		want    int
	}{
		{"negative blocks indefinitely", -1, -1},
		{"zero polls", 0, 0},
		{"sub-millisecond rounds up", 100 * time.Microsecond, 1},
		{"whole milliseconds pass through", 25 * time.Millisecond, 25},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := waitMillis(tc.timeout); got != tc.want {
				t.Errorf("waitMillis(%v) = %d, want %d", tc.timeout, got, tc.want)
			}
		})
	}
}
