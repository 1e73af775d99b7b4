package runloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrAlreadyLaunched is returned by Run when another loop instance is
	// already launched in this process. At most one loop may be launched at
	// a time; the latch is released when Run returns.
	ErrAlreadyLaunched = errors.New("runloop: another loop is already launched in this process")

	// ErrAlreadyRunning is returned when Run is called on a loop that is
	// already running.
	ErrAlreadyRunning = errors.New("runloop: loop is already running")

	// ErrTerminated is returned when operations are attempted on a
	// terminated loop.
	ErrTerminated = errors.New("runloop: loop has been terminated")

	// ErrReentrantRun is returned when Run is called from the loop's own
	// goroutine.
	ErrReentrantRun = errors.New("runloop: cannot call Run from within the loop")

	// ErrNilHandler is returned when Run is called without a handler.
	ErrNilHandler = errors.New("runloop: handler must not be nil")

	// ErrNotOwner is the panic value (wrapped) when an owner-only method is
	// called from a goroutine other than the one running the loop.
	ErrNotOwner = errors.New("runloop: method reserved for the loop goroutine")
)

// PanicError wraps a panic recovered from the application handler. Run
// returns it after internal state has been restored to Terminated.
type PanicError struct {
	// Value is the original panic value.
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("runloop: handler panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type,
// enabling [errors.Is] and [errors.As] through the cause chain. Returns nil
// for non-error panic values.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ExitError is returned by Run when the handler requested termination with
// a non-zero exit code. A zero code yields a nil error instead.
type ExitError struct {
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("runloop: loop exited with code %d", e.Code)
}

// OSError wraps a native failure from the wake primitive or an event
// source. It is recoverable from the caller's perspective: Run returns it
// after delivering the final teardown notification where feasible.
type OSError struct {
	Err error
	Op  string
}

// Error implements the error interface.
func (e *OSError) Error() string {
	return fmt.Sprintf("runloop: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and
// [errors.As].
func (e *OSError) Unwrap() error { return e.Err }

// bugf panics with an internal-consistency failure. These indicate state
// corruption that would break delivery ordering; continuing is never safe.
func bugf(format string, args ...any) {
	panic(fmt.Errorf("runloop: internal error: "+format, args...))
}
