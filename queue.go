package hfsm

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// queuedEvent is an event waiting to be fired
type queuedEvent[E comparable] struct {
	id       uuid.UUID
	event    E
	args     []any
	enqueued time.Time
}

// eventQueue is a double-ended, goroutine-safe queue. Normal events are
// appended at the tail, priority events are inserted at the head. Waiters
// are woken on every push and when the queue is closed.
//
// A consumer holds the queue busy from a successful pop until release, so
// that idle never reports true while a dequeued event is still in hand.
type eventQueue[E comparable] struct {
	mutex  sync.Mutex
	events []queuedEvent[E]
	busy   bool
	wakeup chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newQueuedEvent[E comparable](event E, args []any) queuedEvent[E] {
	return queuedEvent[E]{id: uuid.New(), event: event, args: args, enqueued: time.Now()}
}

func newEventQueue[E comparable]() *eventQueue[E] {
	return &eventQueue[E]{
		wakeup: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (q *eventQueue[E]) push(event E, args []any) queuedEvent[E] {
	qe := newQueuedEvent(event, args)
	q.mutex.Lock()
	q.events = append(q.events, qe)
	q.mutex.Unlock()
	q.signal()
	return qe
}

func (q *eventQueue[E]) pushFront(event E, args []any) queuedEvent[E] {
	qe := newQueuedEvent(event, args)
	q.mutex.Lock()
	q.events = append([]queuedEvent[E]{qe}, q.events...)
	q.mutex.Unlock()
	q.signal()
	return qe
}

func (q *eventQueue[E]) signal() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

// pop removes the head event without blocking. A closed queue yields
// nothing.
func (q *eventQueue[E]) pop() (queuedEvent[E], bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	select {
	case <-q.closed:
		return queuedEvent[E]{}, false
	default:
	}
	if len(q.events) == 0 {
		return queuedEvent[E]{}, false
	}
	qe := q.events[0]
	q.events[0] = queuedEvent[E]{}
	q.events = q.events[1:]
	q.busy = true
	return qe, true
}

func (q *eventQueue[E]) acquire() {
	q.mutex.Lock()
	q.busy = true
	q.mutex.Unlock()
}

func (q *eventQueue[E]) release() {
	q.mutex.Lock()
	q.busy = false
	q.mutex.Unlock()
}

// idle is true when nothing is queued and no consumer holds an event
func (q *eventQueue[E]) idle() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return !q.busy && len(q.events) == 0
}

// popWait waits up to timeout for an event. It returns early when the queue
// is closed.
func (q *eventQueue[E]) popWait(timeout time.Duration) (queuedEvent[E], bool) {
	if qe, ok := q.pop(); ok {
		return qe, true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.closed:
			return queuedEvent[E]{}, false
		case <-timer.C:
			return q.pop()
		case <-q.wakeup:
			if qe, ok := q.pop(); ok {
				return qe, true
			}
		}
	}
}

// close stops all future dequeuing; pending events stay counted.
func (q *eventQueue[E]) close() {
	q.once.Do(func() { close(q.closed) })
}

func (q *eventQueue[E]) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.events)
}

func (q *eventQueue[E]) pending() []queuedEvent[E] {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return append([]queuedEvent[E](nil), q.events...)
}
