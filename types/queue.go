package types

import (
	"sync"
)

// minQueueLen is smallest capacity that queue may have.
// Must be power of 2 for bitwise modulus: x % n == x & (n - 1).
const minQueueLen = 16

// Queue ring buffer of elements in FIFO order. Safe for concurrent use.
type Queue[T any] struct {
	buf   []T
	head  int
	tail  int
	count int
	lock  sync.RWMutex
}

// NewQueue constructs and returns a new Queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		buf: make([]T, minQueueLen),
	}
}

// Length returns the number of elements currently stored in the queue.
func (q *Queue[T]) Length() int {
	defer q.lock.RUnlock()
	q.lock.RLock()

	return q.count
}

// resize the queue to fit exactly twice its current contents
// this can result in shrinking if the queue is less than half-full
func (q *Queue[T]) resize() {
	newBuf := make([]T, q.count<<1)

	if q.tail > q.head {
		copy(newBuf, q.buf[q.head:q.tail])
	} else {
		n := copy(newBuf, q.buf[q.head:])
		copy(newBuf[n:], q.buf[:q.tail])
	}

	q.head = 0
	q.tail = q.count
	q.buf = newBuf
}

// Add puts an element on the end of the queue.
func (q *Queue[T]) Add(elem T) {
	defer q.lock.Unlock()
	q.lock.Lock()

	if q.count == len(q.buf) {
		q.resize()
	}

	q.buf[q.tail] = elem
	// bitwise modulus
	q.tail = (q.tail + 1) & (len(q.buf) - 1)
	q.count++
}

// Peek returns the element at the head of the queue
func (q *Queue[T]) Peek() (T, bool) {
	defer q.lock.RUnlock()
	q.lock.RLock()

	if q.count == 0 {
		var zero T
		return zero, false
	}

	return q.buf[q.head], true
}

// Remove removes and returns the element from the front of the queue.
func (q *Queue[T]) Remove() (T, bool) {
	defer q.lock.Unlock()
	q.lock.Lock()

	var zero T

	if q.count == 0 {
		return zero, false
	}

	ret := q.buf[q.head]
	q.buf[q.head] = zero
	// bitwise modulus
	q.head = (q.head + 1) & (len(q.buf) - 1)
	q.count--

	// Resize down if buffer 1/4 full.
	if len(q.buf) > minQueueLen && (q.count<<2) == len(q.buf) {
		q.resize()
	}

	return ret, true
}

// Drain removes every element and returns them in FIFO order
func (q *Queue[T]) Drain() []T {
	defer q.lock.Unlock()
	q.lock.Lock()

	out := make([]T, 0, q.count)

	var zero T
	for q.count > 0 {
		out = append(out, q.buf[q.head])
		q.buf[q.head] = zero
		q.head = (q.head + 1) & (len(q.buf) - 1)
		q.count--
	}

	q.head = 0
	q.tail = 0
	if len(q.buf) > minQueueLen {
		q.buf = make([]T, minQueueLen)
	}

	return out
}
