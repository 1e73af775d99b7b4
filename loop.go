package runloop

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Handler is the application's event callback. It receives each [Event],
// a handle to the loop (for [Loop.RequestExit], proxies, the waker), and a
// pointer to the current [ControlFlow], which it may read or replace to
// select the sleep policy for the next cycle.
//
// The handler is only ever invoked from the loop goroutine, never
// concurrently with itself, and never re-entered: events produced from
// inside the handler are queued and replayed after it returns.
type Handler func(event Event, loop *Loop, flow *ControlFlow)

// launchLatch enforces the single-launched-loop-per-process contract.
// Platforms with a global application object cannot host two live run
// loops; launching a second concurrently errs rather than silently
// aliasing stale global state.
var launchLatch atomic.Bool

var loopIDCounter atomic.Uint64

// Loop drives the run loop: it turns wakes from the native layer into
// dispatch cycles with identical ordering semantics on every platform.
// Create with [New], then call [Loop.Run] exactly once from the goroutine
// that is to own it.
type Loop struct { // betteralign:ignore
	// Prevent copying.
	_ [0]func()

	log      *logiface.Logger[logiface.Event]
	waker    *Waker
	sources  []Source
	loopDone chan struct{}
	id       uint64

	// state is the cross-goroutine-visible lifecycle; the dispatch state
	// machine proper lives in run and is owned by the loop goroutine.
	state fastState
	run   runner
	proxy eventIngress

	metrics         Metrics
	loopGoroutineID atomic.Uint64
}

// New creates a run loop with the given options. The loop is inert until
// [Loop.Run] is called.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	waker, err := newWaker(cfg.nestedPumpInterval)
	if err != nil {
		return nil, &OSError{Op: "create wake primitive", Err: err}
	}

	l := &Loop{
		id:       loopIDCounter.Add(1),
		log:      cfg.logger,
		waker:    waker,
		sources:  cfg.sources,
		loopDone: make(chan struct{}),
	}
	l.run.init(l)

	for _, s := range cfg.sources {
		if b, ok := s.(wakeBinder); ok {
			b.bindWake(waker.Wake)
		}
	}

	return l, nil
}

// Run launches the loop and blocks until it terminates: via [Exit] control
// flow, [Loop.RequestExit], or ctx cancellation. The calling goroutine
// becomes the owning goroutine for the loop's lifetime.
//
// Returns nil on a zero exit code, [*ExitError] on a non-zero one,
// ctx.Err() on cancellation, [*OSError] on a native failure, and
// [*PanicError] if the handler panicked. In every case the loop ends
// Terminated and cannot be run again.
func (l *Loop) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if l.isLoopGoroutine() {
		return ErrReentrantRun
	}
	switch l.state.Load() {
	case StateTerminating, StateTerminated:
		return ErrTerminated
	}
	if !launchLatch.CompareAndSwap(false, true) {
		return ErrAlreadyLaunched
	}
	defer launchLatch.Store(false)

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrTerminated
		}
		return ErrAlreadyRunning
	}
	defer close(l.loopDone)

	// Native event delivery is typically thread-affine.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopGoroutineID.Store(goroutineID())
	defer l.loopGoroutineID.Store(0)

	l.log.Debug().
		Uint64("loop", l.id).
		Log("run loop launched")

	// Watcher wakes the loop on ctx cancellation; the exit itself is
	// requested by the owning goroutine at the top of the next cycle.
	watcherDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = l.waker.Wake()
		case <-watcherDone:
		}
	}()
	defer close(watcherDone)

	err := l.cycle(ctx, handler)

	l.state.Store(StateTerminated)
	_ = l.waker.Close()

	l.log.Debug().
		Uint64("loop", l.id).
		Err(err).
		Log("run loop terminated")
	return err
}

// cycle is the dispatch cycle driver: begin cycle, drain sources and
// proxy, end cycle, arm the waker, sleep, repeat.
func (l *Loop) cycle(ctx context.Context, handler Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			// The runner restored itself to a terminal phase before the
			// panic propagated; surface handler failures as typed errors
			// and let genuine internal bugs crash.
			pe, ok := rec.(*PanicError)
			if !ok {
				panic(rec)
			}
			l.run.markTerminated()
			err = pe
		}
	}()

	l.run.install(handler)

	var ctxErr error
	for {
		now := time.Now()
		if ctxErr == nil && ctx.Err() != nil {
			ctxErr = ctx.Err()
			l.run.requestExit(0)
		}

		l.run.beginCycle(now)

		if derr := l.drainSources(now); derr != nil {
			l.finishRun()
			return &OSError{Op: "drain event source", Err: derr}
		}
		l.drainProxy(now)

		flow := l.run.endCycle(time.Now())
		if _, ok := flow.ExitCode(); ok {
			break
		}

		l.armWaker(flow)
		if l.hasReadyWork() {
			// An event raced in while processing; skip the sleep so it is
			// picked up by an immediate next cycle.
			continue
		}

		if !l.state.TryTransition(StateRunning, StateSleeping) {
			continue
		}
		woke, werr := l.waker.Wait(time.Now())
		l.state.TryTransition(StateSleeping, StateRunning)
		if werr != nil {
			l.finishRun()
			return &OSError{Op: "wait for events", Err: werr}
		}
		if woke {
			l.metrics.wakes.Add(1)
		} else {
			l.metrics.timeouts.Add(1)
		}
	}

	code := l.finishRun()
	if ctxErr != nil {
		return ctxErr
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// finishRun marks the lifecycle as tearing down before the final
// notification is delivered; Run stores StateTerminated once the waker has
// been closed.
func (l *Loop) finishRun() int {
	l.state.Store(StateTerminating)
	return l.run.finish()
}

func (l *Loop) drainSources(now time.Time) error {
	for _, s := range l.sources {
		if err := s.Drain(func(ev Event) { l.run.dispatch(ev, now) }); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) drainProxy(now time.Time) {
	for n := l.proxy.Len(); n > 0; n-- {
		ev, ok := l.proxy.Pop()
		if !ok {
			break
		}
		l.run.dispatch(ev, now)
	}
}

func (l *Loop) hasReadyWork() bool {
	if l.proxy.Len() > 0 {
		return true
	}
	for _, s := range l.sources {
		if s.Poll() {
			return true
		}
	}
	return false
}

func (l *Loop) armWaker(flow ControlFlow) {
	switch flow.Kind() {
	case ControlPoll:
		l.waker.ArmPoll()
	case ControlWaitUntil:
		deadline, _ := flow.Deadline()
		l.waker.ArmUntil(deadline)
	default:
		l.waker.ArmWait()
	}
}

// Deliver dispatches one event through the control-flow state machine, as
// a native layer would. Before Run it buffers (FIFO, replayed by the first
// cycle); during Run it must only be called from the loop goroutine —
// typically from platform glue invoked synchronously under the handler, in
// which case the event queues for replay after the handler returns.
// Delivering after termination is a programming error and panics.
func (l *Loop) Deliver(ev Event) {
	l.checkOwner()
	l.run.dispatch(ev, time.Now())
}

// RequestExit marks the loop for termination with the given exit code; the
// current cycle still completes and [KindLoopExiting] is delivered exactly
// once. The first requested code wins. Owning goroutine only (use ctx
// cancellation or a proxy from other goroutines).
func (l *Loop) RequestExit(code int) {
	l.checkOwner()
	l.run.requestExit(code)
}

// Wake makes the loop's blocking wait return, beginning a new cycle. Safe
// from any goroutine. Returns [ErrTerminated] once the loop has shut down.
func (l *Loop) Wake() error {
	if l.state.Load() == StateTerminated {
		return ErrTerminated
	}
	return l.waker.Wake()
}

// Waker exposes the loop's wake primitive, for platform glue that needs
// the nested-pump bracketing or custom arm control.
func (l *Loop) Waker() *Waker { return l.waker }

// State returns the cross-goroutine-visible lifecycle state.
func (l *Loop) State() LoopState { return l.state.Load() }

// Metrics returns a snapshot of the loop's runtime counters.
func (l *Loop) Metrics() MetricsSnapshot { return l.metrics.snapshot() }

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.loopDone }

// checkOwner panics if called from a non-owning goroutine while the loop
// runs. Mutating the state machine off-thread would corrupt delivery
// ordering, which is fatal by contract.
func (l *Loop) checkOwner() {
	if id := l.loopGoroutineID.Load(); id != 0 && id != goroutineID() {
		panic(fmt.Errorf("runloop: called from goroutine %d: %w", goroutineID(), ErrNotOwner))
	}
}

func (l *Loop) isLoopGoroutine() bool {
	id := l.loopGoroutineID.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID returns the current goroutine's ID.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
