package channel

import "sync"

// queue is the in-process pipe: a mutex-guarded FIFO slice.
//
// It is unbounded so a sender never blocks. The signal channel (buffered,
// size 1) coalesces notifications and is closed on Close to wake waiters.
//
// Thread-safety: Send and TryRecv may be called from different goroutines.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		items:  make([]T, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Send appends v. Returns ErrDisconnected once the queue is closed.
func (q *queue[T]) Send(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrDisconnected
	}

	q.items = append(q.items, v)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// TryRecv removes and returns the front item without blocking.
// Items queued before Close are still delivered; after that ErrDisconnected.
func (q *queue[T]) TryRecv() (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		if q.closed {
			return zero, false, ErrDisconnected
		}
		return zero, false, nil
	}

	v := q.items[0]
	// Clear the slot so the backing array does not pin argument values.
	q.items[0] = zero
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return v, true, nil
}

// Wait returns a channel that fires when items may be available.
func (q *queue[T]) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes waiters.
func (q *queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
