package runloop

import (
	"sync/atomic"
	"time"
)

// wakeMode selects the sleep strategy the waker is armed with.
type wakeMode uint8

const (
	wakeWait  wakeMode = iota // block until signalled
	wakePoll                  // return immediately
	wakeUntil                 // block until deadline or signal
)

// Waker is the cross-thread wake primitive. The owning goroutine arms it
// ([Waker.ArmPoll], [Waker.ArmWait], [Waker.ArmUntil]) and blocks in
// [Waker.Wait] between cycles; any goroutine may call [Waker.Wake] to make
// that wait return. Delivery is at-least-once: a wake issued before the
// owner actually starts waiting is never lost (the underlying fd or event
// object stays readable/signalled), while spurious extra wakes are
// harmless because the cycle's StartCause is recomputed from the wall
// clock, never from which source fired.
type Waker struct { // betteralign:ignore
	deadline       time.Time
	nestedInterval time.Duration
	os             wakerOS
	pending        atomic.Uint32
	closed         atomic.Bool
	nested         int
	mode           wakeMode
}

func newWaker(nestedInterval time.Duration) (*Waker, error) {
	w := &Waker{nestedInterval: nestedInterval}
	if err := w.os.init(); err != nil {
		return nil, err
	}
	return w, nil
}

// ArmPoll makes the next Wait return immediately. Owning goroutine only.
func (w *Waker) ArmPoll() { w.mode = wakePoll }

// ArmWait makes the next Wait block until a wake signal. Owning goroutine
// only.
func (w *Waker) ArmWait() { w.mode = wakeWait }

// ArmUntil makes the next Wait block until deadline or a wake signal,
// whichever is first. Owning goroutine only.
func (w *Waker) ArmUntil(deadline time.Time) {
	w.mode = wakeUntil
	w.deadline = deadline
}

// Wake makes the owning goroutine's blocking Wait return at least once
// after this call. Safe to call from any goroutine, including concurrently
// with the owner entering or leaving Wait. Concurrent wakes collapse into
// a single signal via the pending flag.
func (w *Waker) Wake() error {
	if w.closed.Load() {
		return ErrTerminated
	}
	if w.pending.CompareAndSwap(0, 1) {
		if err := w.os.signal(); err != nil {
			w.pending.Store(0)
			return err
		}
	}
	return nil
}

// Wait blocks according to the armed mode, returning true if it ended due
// to a wake signal and false on deadline or poll expiry. Owning goroutine
// only. now anchors the deadline computation for [ArmUntil].
func (w *Waker) Wait(now time.Time) (bool, error) {
	signaled, err := w.os.wait(w.timeout(now))
	if err != nil {
		return false, err
	}
	if signaled {
		w.os.drain()
		w.pending.Store(0)
	}
	return signaled, nil
}

// timeout computes the effective wait duration; negative means block
// indefinitely. While a nested pump is active the result is clamped so
// WaitUntil deadlines keep being honoured from inside the pump.
func (w *Waker) timeout(now time.Time) time.Duration {
	timeout := time.Duration(-1)
	switch w.mode {
	case wakePoll:
		timeout = 0
	case wakeUntil:
		timeout = w.deadline.Sub(now)
		if timeout < 0 {
			timeout = 0
		}
	}
	if w.nested > 0 && (timeout < 0 || timeout > w.nestedInterval) {
		timeout = w.nestedInterval
	}
	return timeout
}

// EnterNestedPump brackets a platform call that synchronously pumps
// messages (window drag, menu tracking): until the matching
// [Waker.ExitNestedPump], waits are clamped to the configured nested-pump
// interval. Calls nest. Owning goroutine only; prefer
// [Waker.WithNestedPump] for guaranteed restoration.
func (w *Waker) EnterNestedPump() { w.nested++ }

// ExitNestedPump reverses one EnterNestedPump.
func (w *Waker) ExitNestedPump() {
	if w.nested == 0 {
		bugf("nested pump exited without matching enter")
	}
	w.nested--
}

// WithNestedPump runs fn with the nested-pump clamp active, restoring the
// previous timer behaviour on all exit paths, panics included.
func (w *Waker) WithNestedPump(fn func()) {
	w.EnterNestedPump()
	defer w.ExitNestedPump()
	fn()
}

// Close releases the native wake resources. Idempotent. Wakes issued after
// Close return ErrTerminated.
func (w *Waker) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	return w.os.close()
}

// waitMillis converts a timeout to poll-style milliseconds: -1 blocks
// indefinitely, positive values round up. Truncating would let a wait
// elapse just before its deadline, which the resume contract forbids.
func waitMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	return int((timeout + time.Millisecond - 1) / time.Millisecond)
}
