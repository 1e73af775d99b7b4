package runloop

import "sync"

// ingressChunkSize is the number of events per node in the linked list.
const ingressChunkSize = 64

// eventIngress is the cross-thread queue carrying proxy events to the
// owning goroutine. It is a chunked linked list with pooled nodes: pushes
// from producer goroutines amortize to one allocation per chunk, and
// exhausted chunks recycle through a sync.Pool rather than the GC.
//
// Producers call Push from any goroutine; Pop and Len are also safe
// anywhere but are only ever used by the owning goroutine.
type eventIngress struct {
	mu     sync.Mutex
	head   *eventChunk
	tail   *eventChunk
	length int
}

type eventChunk struct {
	events [ingressChunkSize]Event
	next   *eventChunk
	read   int
	write  int
}

var eventChunkPool = sync.Pool{
	New: func() any { return new(eventChunk) },
}

func newEventChunk() *eventChunk {
	c := eventChunkPool.Get().(*eventChunk)
	c.read = 0
	c.write = 0
	c.next = nil
	return c
}

// releaseEventChunk clears event slots before pooling so payload
// references do not outlive their delivery.
func releaseEventChunk(c *eventChunk) {
	for i := c.read; i < c.write; i++ {
		c.events[i] = Event{}
	}
	c.read = 0
	c.write = 0
	c.next = nil
	eventChunkPool.Put(c)
}

// Push appends an event.
func (q *eventIngress) Push(ev Event) {
	q.mu.Lock()
	if q.tail == nil {
		q.tail = newEventChunk()
		q.head = q.tail
	}
	if q.tail.write == len(q.tail.events) {
		next := newEventChunk()
		q.tail.next = next
		q.tail = next
	}
	q.tail.events[q.tail.write] = ev
	q.tail.write++
	q.length++
	q.mu.Unlock()
}

// Pop removes and returns the oldest event, reporting whether one existed.
func (q *eventIngress) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head != nil {
		if q.head.read < q.head.write {
			ev := q.head.events[q.head.read]
			q.head.events[q.head.read] = Event{}
			q.head.read++
			q.length--
			if q.head.read == q.head.write && q.head == q.tail {
				q.head.read = 0
				q.head.write = 0
			}
			return ev, true
		}
		if q.head == q.tail {
			break
		}
		exhausted := q.head
		q.head = q.head.next
		releaseEventChunk(exhausted)
	}
	return Event{}, false
}

// Len returns the number of queued events.
func (q *eventIngress) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}
