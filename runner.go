package runloop

import (
	"fmt"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"
)

// runnerPhase is the dispatch-cycle lifecycle. Unlike [LoopState] it is
// owned exclusively by the loop goroutine and never read concurrently.
type runnerPhase uint8

const (
	// phaseNotLaunched: no handler installed yet; events buffer.
	phaseNotLaunched runnerPhase = iota
	// phaseLaunching: handler installed, first cycle not yet begun.
	phaseLaunching
	// phaseProcessing: inside a dispatch cycle, outside the handler.
	phaseProcessing
	// phaseInCallback: literally inside a call into the handler.
	phaseInCallback
	// phaseWaiting: between cycles under Wait or WaitUntil.
	phaseWaiting
	// phasePollFinished: between cycles under Poll.
	phasePollFinished
	// phaseTerminated: no further dispatch permitted.
	phaseTerminated
)

// String returns a human-readable representation of the phase.
func (p runnerPhase) String() string {
	switch p {
	case phaseNotLaunched:
		return "NotLaunched"
	case phaseLaunching:
		return "Launching"
	case phaseProcessing:
		return "Processing"
	case phaseInCallback:
		return "InCallback"
	case phaseWaiting:
		return "Waiting"
	case phasePollFinished:
		return "PollFinished"
	case phaseTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// runner is the control-flow state machine at the heart of the loop. It
// decides when to synthesize NewEvents, when to dispatch buffered and
// incoming events, when to emit AboutToWait, and which sleep strategy the
// waker should be armed with. It never blocks; the current time is always
// passed in, which keeps every transition unit-testable.
//
// Reentrancy: a dispatch arriving while the handler is already executing
// (phaseInCallback) is appended to the reentrant FIFO instead of recursing;
// the outer deliver drains it, so the handler is never invoked concurrently
// with itself and never observes torn state.
type runner struct {
	loop      *Loop
	log       *logiface.Logger[logiface.Event]
	metrics   *Metrics
	handler   Handler
	pending   *queue.Queue // events observed before launch, FIFO
	reentrant *queue.Queue // events observed while in the handler, FIFO
	flow      ControlFlow
	// sleepFlow is the flow in effect when the loop went to sleep.
	sleepFlow    ControlFlow
	sleepStart   time.Time
	exitCode     int
	phase        runnerPhase
	started      bool
	exit         bool
	exitNotified bool
}

func (r *runner) init(loop *Loop) {
	r.loop = loop
	r.log = loop.log
	r.metrics = &loop.metrics
	r.pending = queue.New()
	r.reentrant = queue.New()
}

// install supplies the application handler, moving the runner out of the
// buffering-only state. Buffered events replay inside the first cycle.
func (r *runner) install(h Handler) {
	if r.phase != phaseNotLaunched {
		bugf("handler installed in phase %s", r.phase)
	}
	r.handler = h
	r.phase = phaseLaunching
}

// beginCycle opens a dispatch cycle for the current wake: it computes the
// StartCause, delivers NewEvents, and flushes any pre-launch buffer. It is
// idempotent while a cycle is already in progress, which defends against
// spurious re-entry from native glue.
func (r *runner) beginCycle(now time.Time) {
	switch r.phase {
	case phaseProcessing, phaseInCallback:
		return
	case phaseTerminated:
		bugf("cycle started after termination")
	case phaseNotLaunched:
		bugf("cycle started before a handler was installed")
	}

	cause := r.computeCause(now)
	r.phase = phaseProcessing
	r.metrics.cycles.Add(1)
	r.log.Trace().
		Stringer("cause", cause).
		Log("cycle started")

	r.invoke(NewEventsEvent(cause))
	r.flushPending()
}

// computeCause derives the StartCause for the cycle about to begin from
// the phase and the sleep policy that was in effect, by wall-clock
// comparison only; which source actually woke the loop is irrelevant.
func (r *runner) computeCause(now time.Time) StartCause {
	if !r.started {
		r.started = true
		return StartCause{Kind: CauseInit}
	}
	if r.phase == phaseWaiting {
		if deadline, ok := r.sleepFlow.Deadline(); ok {
			if !now.Before(deadline) {
				return StartCause{Kind: CauseResumeTimeReached, Start: r.sleepStart, RequestedResume: deadline}
			}
			return StartCause{Kind: CauseWaitCancelled, Start: r.sleepStart, RequestedResume: deadline}
		}
		return StartCause{Kind: CauseWaitCancelled, Start: r.sleepStart}
	}
	return StartCause{Kind: CausePoll}
}

// dispatch delivers one event through the state machine, beginning a cycle
// first if none is in progress for this wake. Events observed before launch
// buffer; events observed while inside the handler queue for replay after
// the outer dispatch returns.
func (r *runner) dispatch(ev Event, now time.Time) {
	switch r.phase {
	case phaseTerminated:
		panic(fmt.Errorf("runloop: event dispatched after termination: %w", ErrTerminated))
	case phaseNotLaunched, phaseLaunching:
		r.pending.Add(ev)
		r.metrics.buffered.Add(1)
		return
	case phaseInCallback:
		r.reentrant.Add(ev)
		r.metrics.reentrant.Add(1)
		return
	case phaseWaiting, phasePollFinished:
		r.beginCycle(now)
	}
	r.deliver(ev)
}

// endCycle emits AboutToWait, re-reads the possibly-mutated ControlFlow,
// and records the sleep that is about to begin. The returned flow is what
// the waker must be armed with; an Exit result means no further cycle may
// begin. now is taken as the instant the sleep starts.
func (r *runner) endCycle(now time.Time) ControlFlow {
	if r.phase != phaseProcessing {
		bugf("cycle ended in phase %s", r.phase)
	}

	if code, ok := r.flow.ExitCode(); ok {
		r.setExit(code)
	}

	r.deliver(Event{Kind: KindAboutToWait})

	// The handler may have changed the policy, or requested exit, during
	// AboutToWait.
	if code, ok := r.flow.ExitCode(); ok {
		r.setExit(code)
	}
	if r.exit {
		return Exit(r.exitCode)
	}

	r.sleepFlow = r.flow
	r.sleepStart = now
	if r.flow.Kind() == ControlPoll {
		r.phase = phasePollFinished
	} else {
		r.phase = phaseWaiting
	}
	return r.flow
}

// requestExit marks the terminal control flow. The running cycle still
// completes; no cycle begins afterwards. The first requested code wins.
func (r *runner) requestExit(code int) {
	if r.phase == phaseTerminated {
		panic(fmt.Errorf("runloop: exit requested after termination: %w", ErrTerminated))
	}
	r.setExit(code)
	r.flow = Exit(r.exitCode)
}

func (r *runner) setExit(code int) {
	if !r.exit {
		r.exit = true
		r.exitCode = code
		r.log.Debug().
			Int("code", code).
			Log("exit requested")
	}
}

// finish delivers the final LoopExiting notification (exactly once) and
// moves the runner to its terminal phase. Safe to call on every teardown
// path, including ones where no cycle is in progress.
func (r *runner) finish() int {
	if r.phase == phaseTerminated {
		return r.exitCode
	}
	if !r.exitNotified {
		r.exitNotified = true
		switch r.phase {
		case phaseProcessing, phaseWaiting, phasePollFinished:
			r.phase = phaseProcessing
			r.invoke(Event{Kind: KindLoopExiting})
			// LoopExiting is the final event ever delivered; anything the
			// teardown callback dispatches is discarded, never invoked.
			for r.reentrant.Length() > 0 {
				r.reentrant.Remove()
			}
		}
	}
	r.phase = phaseTerminated
	return r.exitCode
}

// markTerminated forces the terminal phase without delivering anything.
// Used after a handler panic, where no further callback may run.
func (r *runner) markTerminated() {
	r.phase = phaseTerminated
}

// flushPending replays the pre-launch buffer in arrival order. Events the
// handler dispatches mid-replay queue behind the buffer rather than
// overtaking it, so everything buffered before launch is delivered strictly
// before anything that arrived after. dispatch never buffers again once the
// replay has drained.
func (r *runner) flushPending() {
	for {
		for r.reentrant.Length() > 0 {
			r.pending.Add(r.reentrant.Remove())
		}
		if r.pending.Length() == 0 {
			return
		}
		r.invoke(r.pending.Remove().(Event))
	}
}

// deliver invokes the handler for ev, then drains any events that arrived
// reentrantly during the callback, in arrival order, repeating until the
// queue is empty. Nested dispatches land in the reentrant queue rather than
// recursing, so invocation depth stays constant.
func (r *runner) deliver(ev Event) {
	r.invoke(ev)
	for r.reentrant.Length() > 0 {
		r.invoke(r.reentrant.Remove().(Event))
	}
}

// invoke runs the handler for a single event, guarding phase consistency
// against handler panics: the failure propagates as a [*PanicError], but
// only after the runner has been moved to a consistent terminal state. A
// half-updated phase here would corrupt every later cycle.
func (r *runner) invoke(ev Event) {
	if r.phase != phaseProcessing {
		bugf("handler invoked in phase %s", r.phase)
	}
	r.phase = phaseInCallback
	defer func() {
		if rec := recover(); rec != nil {
			for r.reentrant.Length() > 0 {
				r.reentrant.Remove()
			}
			r.phase = phaseTerminated
			r.log.Err().
				Interface("value", rec).
				Stringer("event", ev).
				Log("handler panicked")
			if pe, ok := rec.(*PanicError); ok {
				panic(pe)
			}
			panic(&PanicError{Value: rec})
		}
	}()
	r.handler(ev, r.loop, &r.flow)
	r.phase = phaseProcessing
	r.metrics.events.Add(1)
}
