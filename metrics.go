package runloop

import "sync/atomic"

// Metrics holds lightweight runtime counters. All counters are atomics so
// snapshots may be taken from any goroutine while the loop runs.
type Metrics struct {
	cycles    atomic.Uint64
	events    atomic.Uint64
	buffered  atomic.Uint64
	reentrant atomic.Uint64
	wakes     atomic.Uint64
	timeouts  atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the loop's counters.
type MetricsSnapshot struct {
	// Cycles is the number of dispatch cycles begun.
	Cycles uint64
	// Events is the number of handler invocations (all event kinds).
	Events uint64
	// Buffered is the number of events queued before launch.
	Buffered uint64
	// Reentrant is the number of events queued while inside the handler.
	Reentrant uint64
	// Wakes is the number of waits ended by a wake signal.
	Wakes uint64
	// Timeouts is the number of waits ended by deadline or poll expiry.
	Timeouts uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Cycles:    m.cycles.Load(),
		Events:    m.events.Load(),
		Buffered:  m.buffered.Load(),
		Reentrant: m.reentrant.Load(),
		Wakes:     m.wakes.Load(),
		Timeouts:  m.timeouts.Load(),
	}
}
