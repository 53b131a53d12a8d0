package job

import (
	"context"
	"errors"
)

var (
	// ErrNilTarget is returned when a constructor or setter receives a
	// nil target or factory.
	ErrNilTarget = errors.New("job: target must not be nil")
	// ErrNotFailed is returned by the retry operations for a key that
	// is not currently failed.
	ErrNotFailed = errors.New("job: key is not failed")
)

// Target processes one input key and returns its result. Keys must be
// usable as unique identities (comparable); two adds with an equal key
// refer to the same work item. The function may block on arbitrary
// I/O; it is invoked without any job lock held.
type Target[K comparable, R any] func(ctx context.Context, key K) (R, error)

// Factory builds a per-worker Target. It is invoked exactly once per
// worker at worker start, and the produced Target is owned by that
// worker and reused for every task it processes.
type Factory[K comparable, R any] func() Target[K, R]

// Counts is a consistent snapshot of per-status key totals.
type Counts struct {
	Pending  int
	Running  int
	Finished int
	Failed   int
}

// Active returns the number of keys still pending or running. A job is
// drained when Active is zero.
func (c Counts) Active() int { return c.Pending + c.Running }

// Total returns the number of keys ever added.
func (c Counts) Total() int { return c.Pending + c.Running + c.Finished + c.Failed }
