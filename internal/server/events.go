package server

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Event reports a completed exchange to the dispatcher.
type Event struct {
	exchange *exchange
}

// events is a bounded lock-free queue backed by an unbounded list, used when the queue is
// full. No event is ever dropped.
type events struct {
	queue    *xsync.MPMCQueueOf[Event]
	mu       sync.Mutex
	overflow []Event
}

func newEvents(size int) *events {
	return &events{
		queue: xsync.NewMPMCQueueOf[Event](size),
	}
}

func (e *events) Push(ev Event) {
	if e.queue.TryEnqueue(ev) {
		return
	}

	e.mu.Lock()
	e.overflow = append(e.overflow, ev)
	e.mu.Unlock()
}

// Pop returns the next event. The overflow list is served once the queue is empty.
func (e *events) Pop() (Event, bool) {
	if ev, ok := e.queue.TryDequeue(); ok {
		return ev, true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.overflow) == 0 {
		return Event{}, false
	}

	ev := e.overflow[0]
	e.overflow[0] = Event{}
	e.overflow = e.overflow[1:]

	return ev, true
}
