// Package workqueue holds the ordered backlog of keys awaiting a
// worker. It is purely an ordering and availability structure: item
// state lives in the registry.
package workqueue

import "sync"

// Queue is a FIFO of keys with a non-blocking pop. Idle workers wait on
// Notify with a bounded timeout instead of blocking on the queue
// itself, so pause, stop and resize signals stay responsive.
type Queue[K any] struct {
	mu      sync.Mutex
	entries []K
	head    int
	notify  chan struct{}
}

// New creates an empty queue.
func New[K any]() *Queue[K] {
	return &Queue[K]{
		notify: make(chan struct{}),
	}
}

// Push appends key to the tail and wakes all idle workers.
func (q *Queue[K]) Push(key K) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, key)
	q.wakeLocked()
}

// PushMany appends keys in order and wakes all idle workers, so a burst
// submit is picked up immediately instead of on the next poll.
func (q *Queue[K]) PushMany(keys []K) {
	if len(keys) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, keys...)
	q.wakeLocked()
}

// TryPop removes and returns the head of the queue. It never blocks;
// the second return value is false when the queue is empty.
func (q *Queue[K]) TryPop() (K, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.entries) {
		var zero K
		return zero, false
	}
	key := q.entries[q.head]
	var zero K
	q.entries[q.head] = zero
	q.head++
	q.compactLocked()
	return key, true
}

// Len returns the number of keys currently queued.
func (q *Queue[K]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) - q.head
}

// Notify returns a channel closed by the next push. Fetch it before the
// TryPop whose emptiness you are waiting out, and combine it with a
// timeout so a wake fetched late only delays, never strands, a worker.
func (q *Queue[K]) Notify() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.notify
}

// wakeLocked wakes every waiter by closing the current notify channel
// and installing a fresh one.
func (q *Queue[K]) wakeLocked() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// compactLocked reclaims the consumed prefix once it dominates the
// backing slice, keeping amortized cost O(1) per pop.
func (q *Queue[K]) compactLocked() {
	if q.head == len(q.entries) {
		q.entries = q.entries[:0]
		q.head = 0
		return
	}
	if q.head > 1024 && q.head*2 >= len(q.entries) {
		n := copy(q.entries, q.entries[q.head:])
		clear(q.entries[n:])
		q.entries = q.entries[:n]
		q.head = 0
	}
}
