package dnfdaemon

import (
	"context"
	"sync"
)

// Queue is an unbounded multi-producer single-consumer FIFO of events.
// Producers never block.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

func (q *Queue) Publish(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryNext pops the oldest event without waiting.
func (q *Queue) TryNext() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	e := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	return e, true
}

// Next waits for the oldest event or for ctx to end.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	for {
		if e, ok := q.TryNext(); ok {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Drain pops up to max events in order. max <= 0 drains everything.
func (q *Queue) Drain(max int) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if max > 0 && max < n {
		n = max
	}
	out := make([]Event, n)
	copy(out, q.items[:n])
	clear(q.items[:n])
	q.items = q.items[n:]
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
