// Package registry is the authoritative store mapping each unique input
// key to its work item: lifecycle status, attempt count, and outcome.
// All mutations are serialized under one mutex; readers always observe
// a consistent snapshot.
package registry

import (
	"fmt"
	"sync"
)

// Status is the lifecycle state of a work item.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusFinished
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AttemptError records the failure of a single execution attempt.
type AttemptError struct {
	// Attempt is the 1-based attempt number that failed.
	Attempt int
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// Counts is an atomic snapshot of item totals per status.
type Counts struct {
	Pending  int
	Running  int
	Finished int
	Failed   int
}

// Active returns the number of items still pending or running. A job is
// drained when Active is zero.
func (c Counts) Active() int { return c.Pending + c.Running }

// Total returns the number of items ever submitted.
func (c Counts) Total() int { return c.Pending + c.Running + c.Finished + c.Failed }

type item[R any] struct {
	status   Status
	attempts int
	result   R
	failure  *AttemptError
}

// Registry owns all work items for a job's lifetime.
//
// State transitions are strict: Begin requires Pending, Complete and
// Fail require Running, Requeue requires Failed. A violation indicates
// a defect in the pool's locking, never a user error, so Begin,
// Complete and Fail panic on one rather than silently continuing.
type Registry[K comparable, R any] struct {
	mu      sync.Mutex
	items   map[K]*item[R]
	counts  Counts
	changed chan struct{}
}

// New creates an empty registry.
func New[K comparable, R any]() *Registry[K, R] {
	return &Registry[K, R]{
		items:   make(map[K]*item[R]),
		changed: make(chan struct{}),
	}
}

// Submit inserts a new Pending item for key if the key is absent.
// It returns false for any existing entry, whatever its status; a
// Failed entry re-enters the pending set only through Requeue.
func (r *Registry[K, R]) Submit(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; ok {
		return false
	}
	r.items[key] = &item[R]{status: StatusPending}
	r.counts.Pending++
	r.notifyLocked()
	return true
}

// Begin transitions key from Pending to Running. It is called by the
// worker that dequeued the key.
func (r *Registry[K, R]) Begin(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.mustBeLocked(key, StatusPending, "begin")
	it.status = StatusRunning
	r.counts.Pending--
	r.counts.Running++
	r.notifyLocked()
}

// Complete transitions key from Running to Finished and stores the
// result, clearing any failure recorded by an earlier attempt.
func (r *Registry[K, R]) Complete(key K, result R) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.mustBeLocked(key, StatusRunning, "complete")
	it.status = StatusFinished
	it.result = result
	it.failure = nil
	r.counts.Running--
	r.counts.Finished++
	r.notifyLocked()
}

// Fail transitions key from Running to Failed, increments the attempt
// count, and stores the cause tagged with the attempt number. It
// returns the new attempt count so the caller can apply its retry
// limit.
func (r *Registry[K, R]) Fail(key K, cause error) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.mustBeLocked(key, StatusRunning, "fail")
	it.status = StatusFailed
	it.attempts++
	it.failure = &AttemptError{Attempt: it.attempts, Err: cause}
	r.counts.Running--
	r.counts.Failed++
	r.notifyLocked()
	return it.attempts
}

// Requeue transitions key from Failed back to Pending so it can be
// executed again. It returns false if the key is absent or not Failed.
// The stored failure survives until a subsequent attempt completes or
// fails again.
func (r *Registry[K, R]) Requeue(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[key]
	if !ok || it.status != StatusFailed {
		return false
	}
	it.status = StatusPending
	r.counts.Failed--
	r.counts.Pending++
	r.notifyLocked()
	return true
}

// Snapshot returns the current per-status totals.
func (r *Registry[K, R]) Snapshot() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

// Status returns the current status of key.
func (r *Registry[K, R]) Status(key K) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[key]
	if !ok {
		return 0, false
	}
	return it.status, true
}

// Attempts returns the number of execution attempts recorded for key.
func (r *Registry[K, R]) Attempts(key K) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[key]
	if !ok {
		return 0, false
	}
	return it.attempts, true
}

// Result returns the stored result for key if it is Finished.
func (r *Registry[K, R]) Result(key K) (R, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[key]
	if !ok || it.status != StatusFinished {
		var zero R
		return zero, false
	}
	return it.result, true
}

// Failure returns the latest attempt's error for key if it is Failed.
func (r *Registry[K, R]) Failure(key K) (error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[key]
	if !ok || it.status != StatusFailed || it.failure == nil {
		return nil, false
	}
	return it.failure, true
}

// Results returns a copy of all Finished results keyed by input.
func (r *Registry[K, R]) Results() map[K]R {
	r.mu.Lock()
	defer r.mu.Unlock()
	results := make(map[K]R, r.counts.Finished)
	for key, it := range r.items {
		if it.status == StatusFinished {
			results[key] = it.result
		}
	}
	return results
}

// Failures returns a copy of the latest errors for all Failed items.
func (r *Registry[K, R]) Failures() map[K]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	failures := make(map[K]error, r.counts.Failed)
	for key, it := range r.items {
		if it.status == StatusFailed && it.failure != nil {
			failures[key] = it.failure
		}
	}
	return failures
}

// FailedKeys returns the keys of all currently Failed items.
func (r *Registry[K, R]) FailedKeys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]K, 0, r.counts.Failed)
	for key, it := range r.items {
		if it.status == StatusFailed {
			keys = append(keys, key)
		}
	}
	return keys
}

// Changed returns a channel that is closed on the next state
// transition. Waiters must re-fetch it after each wakeup:
//
//	for {
//	    changed := reg.Changed()
//	    if reg.Snapshot().Active() == 0 {
//	        return
//	    }
//	    <-changed
//	}
func (r *Registry[K, R]) Changed() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

func (r *Registry[K, R]) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Registry[K, R]) mustBeLocked(key K, want Status, op string) *item[R] {
	it, ok := r.items[key]
	if !ok {
		panic(fmt.Sprintf("registry: %s on unknown key %v", op, key))
	}
	if it.status != want {
		panic(fmt.Sprintf("registry: %s on %v in state %s, want %s", op, key, it.status, want))
	}
	return it
}
