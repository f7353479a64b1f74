package transcribe

import (
	"context"
	"sync"
)

// DropOldestQueue is a bounded FIFO. Push never blocks: when the queue is
// full the oldest item is discarded to make room.
type DropOldestQueue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	size    int
	closed  bool
	dropped uint64
	ready   chan struct{}
}

// NewDropOldestQueue creates a queue holding at most capacity items.
func NewDropOldestQueue[T any](capacity int) *DropOldestQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &DropOldestQueue[T]{
		items: make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends v. It reports whether an older item was dropped. Pushing to
// a closed queue is a no-op.
func (q *DropOldestQueue[T]) Push(v T) (dropped bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if q.size == len(q.items) {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
		q.dropped++
		dropped = true
	}
	q.items[(q.head+q.size)%len(q.items)] = v
	q.size++
	q.mu.Unlock()

	q.signal()
	return dropped
}

// TryPop removes the oldest item without blocking.
func (q *DropOldestQueue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.size == 0 {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return v, true
}

// Pop removes the oldest item, waiting until one is available. It returns
// ErrQueueClosed once the queue is closed and drained.
func (q *DropOldestQueue[T]) Pop(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		if q.Closed() {
			var zero T
			return zero, ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// Ready is signalled after a Push or Close. A receive does not guarantee an
// item is waiting.
func (q *DropOldestQueue[T]) Ready() <-chan struct{} { return q.ready }

// Close stops further pushes. Items already queued can still be popped.
func (q *DropOldestQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close was called.
func (q *DropOldestQueue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *DropOldestQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns how many items were discarded to make room.
func (q *DropOldestQueue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *DropOldestQueue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
