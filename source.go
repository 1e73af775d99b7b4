package runloop

import (
	"sync"

	"github.com/eapache/queue"
)

// Source is the boundary with a platform event source adapter. The adapter
// owns native protocol decoding; the loop only sees decoded [Event]
// envelopes.
//
// Both methods are called exclusively from the loop goroutine. Drain must
// not block: it hands over every event that is already decoded and ready,
// in arrival order, and returns. An adapter whose native queue becomes
// ready while the loop sleeps must arrange for [Loop.Wake] (or the bound
// wake function) to be called, from any thread.
type Source interface {
	// Poll reports whether at least one event is ready, without blocking.
	Poll() bool
	// Drain emits every ready event in arrival order. Errors are native
	// failures; the loop terminates and surfaces them from Run.
	Drain(emit func(Event)) error
}

// wakeBinder is implemented by sources that want the loop's wake function
// injected at construction time.
type wakeBinder interface {
	bindWake(wake func() error)
}

// MemorySource is a thread-safe, platform-neutral [Source] backed by an
// in-memory FIFO. Platform glue (or tests) push decoded events from any
// goroutine; the loop is woken automatically once the source is attached
// via [WithSource]. Events pushed before the loop launches are simply
// drained by the first cycle.
type MemorySource struct {
	mu   sync.Mutex
	q    *queue.Queue
	wake func() error
}

// NewMemorySource returns an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{q: queue.New()}
}

// Push appends an event and wakes the loop. Safe from any goroutine.
func (s *MemorySource) Push(ev Event) {
	s.mu.Lock()
	s.q.Add(ev)
	wake := s.wake
	s.mu.Unlock()
	if wake != nil {
		_ = wake()
	}
}

// Poll reports whether at least one event is queued.
func (s *MemorySource) Poll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Length() > 0
}

// Drain emits the events present at the start of the call, in arrival
// order. Events pushed while draining belong to the next wake.
func (s *MemorySource) Drain(emit func(Event)) error {
	s.mu.Lock()
	n := s.q.Length()
	s.mu.Unlock()
	for ; n > 0; n-- {
		s.mu.Lock()
		if s.q.Length() == 0 {
			s.mu.Unlock()
			return nil
		}
		ev := s.q.Remove().(Event)
		s.mu.Unlock()
		emit(ev)
	}
	return nil
}

func (s *MemorySource) bindWake(wake func() error) {
	s.mu.Lock()
	s.wake = wake
	s.mu.Unlock()
}
