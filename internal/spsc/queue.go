// Package spsc implements a bounded single-producer/single-consumer
// lock-free queue.
//
// The queue is the only communication primitive allowed between the control
// side and the engine (audio) thread: push and pop never block, never
// allocate, and report full/empty as ordinary outcomes rather than errors.
// Exactly one goroutine may call Push and exactly one goroutine may call
// Pop; the queue performs no internal locking to enforce this.
package spsc

import "sync/atomic"

// Queue is a fixed-capacity ring buffer with separate producer and consumer
// cursors. Capacity is rounded up to a power of two so slot indexing can use
// a mask instead of modulo.
type Queue[T any] struct {
	buf  []T
	mask uint64

	// Cursors only ever increase; slot index is cursor & mask. The producer
	// owns tail, the consumer owns head, and each loads the other's cursor
	// to detect full/empty.
	head atomic.Uint64
	tail atomic.Uint64
}

// New returns a queue holding at least capacity elements. A capacity below 2
// is raised to 2.
func New[T any](capacity int) *Queue[T] {
	n := uint64(2)
	for n < uint64(capacity) {
		n <<= 1
	}
	return &Queue[T]{
		buf:  make([]T, n),
		mask: n - 1,
	}
}

// Cap returns the number of elements the queue can hold.
func (q *Queue[T]) Cap() int { return len(q.buf) }

// Len returns the number of elements currently queued. It is a snapshot and
// may be stale by the time the caller acts on it.
func (q *Queue[T]) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Push appends v and returns true, or returns false if the queue is full.
// Must only be called from the producer goroutine.
func (q *Queue[T]) Push(v T) bool {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail-head >= uint64(len(q.buf)) {
		return false
	}
	q.buf[tail&q.mask] = v
	q.tail.Store(tail + 1)
	return true
}

// Pop removes and returns the oldest element. The second return value is
// false when the queue is empty. Must only be called from the consumer
// goroutine.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	head := q.head.Load()
	tail := q.tail.Load()
	if head == tail {
		return zero, false
	}
	v := q.buf[head&q.mask]
	q.buf[head&q.mask] = zero // release the slot's reference
	q.head.Store(head + 1)
	return v, true
}
