package runloop

import (
	"fmt"
	"time"
)

// ControlFlowKind discriminates the variants of [ControlFlow].
type ControlFlowKind uint8

const (
	// ControlWait blocks until any event arrives. This is the default.
	ControlWait ControlFlowKind = iota
	// ControlPoll never sleeps; a new cycle begins immediately.
	ControlPoll
	// ControlWaitUntil blocks until a deadline or an event, whichever is first.
	ControlWaitUntil
	// ControlExit terminates the loop after the current cycle completes.
	ControlExit
)

// String returns a human-readable representation of the kind.
func (k ControlFlowKind) String() string {
	switch k {
	case ControlWait:
		return "Wait"
	case ControlPoll:
		return "Poll"
	case ControlWaitUntil:
		return "WaitUntil"
	case ControlExit:
		return "Exit"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// ControlFlow is the application-selected sleep policy applied between
// cycles. The zero value is [Wait]. The handler mutates it through the
// pointer it receives; the loop reads it after each callback to decide the
// next sleep strategy.
type ControlFlow struct {
	deadline time.Time
	code     int
	kind     ControlFlowKind
}

// Wait returns a ControlFlow that sleeps until any event arrives.
func Wait() ControlFlow { return ControlFlow{} }

// Poll returns a ControlFlow that never sleeps.
func Poll() ControlFlow { return ControlFlow{kind: ControlPoll} }

// WaitUntil returns a ControlFlow that sleeps until deadline, or until an
// event arrives, whichever happens first.
func WaitUntil(deadline time.Time) ControlFlow {
	return ControlFlow{kind: ControlWaitUntil, deadline: deadline}
}

// Exit returns a ControlFlow that terminates the loop with the given exit
// code once the current cycle completes. Once observed by the loop it is
// terminal; later cycles never begin.
func Exit(code int) ControlFlow { return ControlFlow{kind: ControlExit, code: code} }

// Kind returns the variant of the control flow.
func (c ControlFlow) Kind() ControlFlowKind { return c.kind }

// Deadline returns the resume deadline and true for [ControlWaitUntil],
// otherwise the zero time and false.
func (c ControlFlow) Deadline() (time.Time, bool) {
	if c.kind == ControlWaitUntil {
		return c.deadline, true
	}
	return time.Time{}, false
}

// ExitCode returns the exit code and true for [ControlExit], otherwise
// zero and false.
func (c ControlFlow) ExitCode() (int, bool) {
	if c.kind == ControlExit {
		return c.code, true
	}
	return 0, false
}

// String returns a human-readable representation of the control flow.
func (c ControlFlow) String() string {
	switch c.kind {
	case ControlWaitUntil:
		return fmt.Sprintf("WaitUntil(%s)", c.deadline.Format(time.RFC3339Nano))
	case ControlExit:
		return fmt.Sprintf("Exit(%d)", c.code)
	default:
		return c.kind.String()
	}
}

// StartCauseKind discriminates the variants of [StartCause].
type StartCauseKind uint8

const (
	// CauseInit marks the very first cycle of the loop's lifetime.
	CauseInit StartCauseKind = iota
	// CausePoll marks a cycle that began because [Poll] was in effect.
	CausePoll
	// CauseWaitCancelled marks a cycle that began before any requested
	// resume time, because an event or a wake arrived.
	CauseWaitCancelled
	// CauseResumeTimeReached marks a cycle that began because a
	// [WaitUntil] deadline was reached.
	CauseResumeTimeReached
)

// String returns a human-readable representation of the kind.
func (k StartCauseKind) String() string {
	switch k {
	case CauseInit:
		return "Init"
	case CausePoll:
		return "Poll"
	case CauseWaitCancelled:
		return "WaitCancelled"
	case CauseResumeTimeReached:
		return "ResumeTimeReached"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// StartCause describes why a cycle began. It is carried by the
// [KindNewEvents] event that opens every cycle.
//
// Start is the instant the loop began sleeping, and is zero for [CauseInit]
// and [CausePoll]. RequestedResume is the [WaitUntil] deadline that was in
// effect, and is zero when the loop was sleeping under plain [Wait] (or not
// sleeping at all).
type StartCause struct {
	Start           time.Time
	RequestedResume time.Time
	Kind            StartCauseKind
}

// String returns a human-readable representation of the cause.
func (c StartCause) String() string { return c.Kind.String() }
