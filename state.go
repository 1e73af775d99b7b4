package runloop

import (
	"sync/atomic"
)

// LoopState is the cross-goroutine-visible lifecycle of a [Loop]. It exists
// so that Wake and SendEvent can coordinate with the owning goroutine's
// sleep transition without locks; the dispatch-cycle state machine proper
// (runner) is owned by a single goroutine and kept separately.
//
// Transitions:
//
//	StateAwake → StateRunning            [Run]
//	StateRunning → StateSleeping         [before blocking wait, via CAS]
//	StateSleeping → StateRunning         [after wait returns, via CAS]
//	StateRunning → StateTerminating      [exit decided, before the teardown notification]
//	StateTerminating → StateTerminated   [teardown complete]
//
// Use TryTransition (CAS) for the reversible Running/Sleeping pair and
// Store only for the irreversible terminal states.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not launched.
	StateAwake LoopState = iota
	// StateRunning indicates the owning goroutine is inside a dispatch cycle.
	StateRunning
	// StateSleeping indicates the owning goroutine is blocked in the waker.
	StateSleeping
	// StateTerminating indicates exit has been requested but teardown has
	// not completed.
	StateTerminating
	// StateTerminated indicates the loop is fully stopped.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state cell with cache-line padding to avoid
// false sharing with neighbouring hot fields.
type fastState struct { // betteralign:ignore
	_ [64]byte //nolint:unused
	v atomic.Uint64
	_ [56]byte //nolint:unused
}

// Load returns the current state atomically.
func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state. Reserved for irreversible states;
// storing Running or Sleeping would break the CAS protocol.
func (s *fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to
// another, reporting success.
func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true once the loop is fully stopped.
func (s *fastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
