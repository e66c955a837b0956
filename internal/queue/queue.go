package queue

import (
	"sync"

	"github.com/wavewatch/wavewatch/pkg/event"
)

// Queue is an in-memory FIFO buffer of raw events awaiting persistence.
// Source tasks append concurrently while the drain task consumes; a single
// mutex around the buffer is all the coordination the pipeline needs.
type Queue struct {
	mu     sync.Mutex
	events []event.RawEvent
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends events. It never blocks beyond the allocation.
func (q *Queue) Enqueue(events []event.RawEvent) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	q.events = append(q.events, events...)
	q.mu.Unlock()
}

// DrainBatch removes and returns up to maxSize oldest events, or everything
// queued if fewer. maxSize <= 0 drains the whole queue.
func (q *Queue) DrainBatch(maxSize int) []event.RawEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.events)
	if n == 0 {
		return nil
	}
	if maxSize <= 0 || maxSize > n {
		maxSize = n
	}

	batch := make([]event.RawEvent, maxSize)
	copy(batch, q.events[:maxSize])
	q.events = q.events[maxSize:]
	if len(q.events) == 0 {
		q.events = nil
	}
	return batch
}

// Len reports how many events are queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
