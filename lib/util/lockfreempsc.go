// Package util
//
// This file provides a lock-free multi-producer single-consumer (MPSC) queue.
//
// Properties:
//
//   - Lock-free pushes: producers only use atomic compare-and-swap on a linked list,
//     so a writer never waits for the consumer.
//   - Unbounded: the queue grows as needed, memory is the only limit.
//   - Single consumer: exactly one goroutine moves values from the list into the
//     channel returned by Recv().
//   - Ordering: a single producer observes FIFO order. Across producers the order is
//     the order in which their CAS succeeded.
package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type mpscNode[T any] struct {
	value *T
	next  atomic.Pointer[mpscNode[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue.
type LockFreeMPSC[T any] struct {
	head   atomic.Pointer[mpscNode[T]] // sentinel, owned by the consumer
	tail   atomic.Pointer[mpscNode[T]]
	out    chan *T
	closed atomic.Bool
	done   sync.WaitGroup

	// the consumer parks on cond while the list is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates a queue and starts its consumer goroutine.
// The goroutine exits after Close once every pushed value has been delivered.
func NewLockFreeMPSC[T any]() *LockFreeMPSC[T] {
	sentinel := &mpscNode[T]{}
	q := &LockFreeMPSC[T]{out: make(chan *T)}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.done.Add(1)
	go q.consume()
	return q
}

// Push appends value. It returns false if value is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &mpscNode[T]{value: value}
	var spins uint8
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// another producer may already have advanced tail for us
				q.tail.CompareAndSwap(tail, n)
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			// tail lags behind, help the other producer
			q.tail.CompareAndSwap(tail, next)
		}

		// exponential backoff under contention
		if spins < 8 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

func (q *LockFreeMPSC[T]) consume() {
	defer q.done.Done()
	defer close(q.out)

	for {
		delivered := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			delivered = true
			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
		}

		if !delivered && q.closed.Load() {
			return
		}

		if !delivered {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel values are delivered on. The channel is closed
// after Close once the queue has been drained.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close stops accepting new values. Values already pushed are still delivered.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed reports whether Close was called.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len counts the values not yet handed to the consumer. It walks the list and
// is meant for tests and debugging only.
func (q *LockFreeMPSC[T]) Len() int {
	count := 0
	for n := q.head.Load().next.Load(); n != nil; n = n.next.Load() {
		count++
	}
	return count
}
