// Package queue provides a fixed-capacity circular buffer shared between
// a producer context and a consumer context.
//
// The buffer resolves the head == tail ambiguity with an explicit full flag
// instead of sacrificing a slot, so a Queue of capacity N holds N elements.
//
// Only the producer may call Enqueue and only the consumer may call Dequeue
// or Peek. Indices are published with atomics (slot first, index second),
// so the other side never observes a slot before its data. The full flag is
// written by both sides; when both sides can run at the same time, the side
// that can be preempted must wrap its mutation in an interrupt-masked
// critical section (see package irq).
package queue

import "sync/atomic"

// Queue is a bounded FIFO of elements of type T.
// A nil *Queue behaves as an empty queue which drops everything.
type Queue[T any] struct {
	buf  []T
	head atomic.Uint32 // next write slot, producer owned
	tail atomic.Uint32 // next read slot, consumer owned
	full atomic.Bool
}

// New allocates a queue with the given capacity.
// It panics if capacity is less than 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("queue: capacity must be at least 1")
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	if q == nil {
		return 0
	}
	return len(q.buf)
}

// Len returns the number of stored elements, between 0 and Cap.
func (q *Queue[T]) Len() int {
	if q == nil {
		return 0
	}
	if q.full.Load() {
		return len(q.buf)
	}
	h, t := int(q.head.Load()), int(q.tail.Load())
	if h >= t {
		return h - t
	}
	return len(q.buf) - t + h
}

// IsEmpty reports whether there is nothing to dequeue.
func (q *Queue[T]) IsEmpty() bool {
	if q == nil {
		return true
	}
	return !q.full.Load() && q.head.Load() == q.tail.Load()
}

// IsFull reports whether Enqueue would drop.
func (q *Queue[T]) IsFull() bool {
	if q == nil {
		return false
	}
	return q.full.Load()
}

// Enqueue stores v at the head. When the queue is full, v is dropped and
// Enqueue returns false; the contents are left unchanged.
func (q *Queue[T]) Enqueue(v T) bool {
	if q == nil || q.full.Load() {
		return false
	}
	h := q.head.Load()
	q.buf[h] = v
	h = q.advance(h)
	q.head.Store(h)
	if h == q.tail.Load() {
		q.full.Store(true)
	}
	return true
}

// Dequeue removes and returns the element at the tail.
// It returns the zero value and false when the queue is empty.
func (q *Queue[T]) Dequeue() (v T, ok bool) {
	if q.IsEmpty() {
		return v, false
	}
	t := q.tail.Load()
	v = q.buf[t]
	q.tail.Store(q.advance(t))
	// one slot was just freed, so the queue can not be full anymore.
	q.full.Store(false)
	return v, true
}

// Peek returns the element at the tail without removing it.
func (q *Queue[T]) Peek() (v T, ok bool) {
	if q.IsEmpty() {
		return v, false
	}
	return q.buf[q.tail.Load()], true
}

// Producer returns the write-side view of the queue.
func (q *Queue[T]) Producer() Producer[T] {
	return Producer[T]{q: q}
}

// Consumer returns the read-side view of the queue.
func (q *Queue[T]) Consumer() Consumer[T] {
	return Consumer[T]{q: q}
}

func (q *Queue[T]) advance(i uint32) uint32 {
	if i++; int(i) == len(q.buf) {
		return 0
	}
	return i
}

// Producer exposes only the operations allowed in the producer context.
type Producer[T any] struct {
	q *Queue[T]
}

// Enqueue forwards to Queue.Enqueue.
func (p Producer[T]) Enqueue(v T) bool { return p.q.Enqueue(v) }

// IsFull forwards to Queue.IsFull.
func (p Producer[T]) IsFull() bool { return p.q.IsFull() }

// Len forwards to Queue.Len.
func (p Producer[T]) Len() int { return p.q.Len() }

// Cap forwards to Queue.Cap.
func (p Producer[T]) Cap() int { return p.q.Cap() }

// Consumer exposes only the operations allowed in the consumer context.
type Consumer[T any] struct {
	q *Queue[T]
}

// Dequeue forwards to Queue.Dequeue.
func (c Consumer[T]) Dequeue() (T, bool) { return c.q.Dequeue() }

// Peek forwards to Queue.Peek.
func (c Consumer[T]) Peek() (T, bool) { return c.q.Peek() }

// IsEmpty forwards to Queue.IsEmpty.
func (c Consumer[T]) IsEmpty() bool { return c.q.IsEmpty() }

// Len forwards to Queue.Len.
func (c Consumer[T]) Len() int { return c.q.Len() }
