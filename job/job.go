package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/utkarsh5026/meanwhile/internal/pool"
	"github.com/utkarsh5026/meanwhile/internal/registry"
	"github.com/utkarsh5026/meanwhile/internal/workqueue"
	"github.com/utkarsh5026/meanwhile/safeprint"
)

// Job is the coordination object for one stream of keyed work. It owns
// the registry of work items, the FIFO backlog, and the worker pool,
// and is safe for concurrent use from any goroutine.
//
// Type parameters:
//   - K: The input key type; equal keys refer to the same work item
//   - R: The result type produced by the target
type Job[K comparable, R any] struct {
	registry *registry.Registry[K, R]
	queue    *workqueue.Queue[K]
	pool     *pool.Pool[K, R]

	statusInterval time.Duration
	closeTimeout   time.Duration
}

// New creates a job that applies target to every added key using
// workers concurrent workers. workers may be zero; no key is processed
// until SetWorkerCount raises it.
//
// Example:
//
//	j, err := job.New(fetch, 10, job.WithAttempts(3))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	j.AddMany(urls)
//	_ = j.Wait(ctx)
func New[K comparable, R any](target Target[K, R], workers int, opts ...Option) (*Job[K, R], error) {
	if target == nil {
		return nil, ErrNilTarget
	}
	return newJob[K, R](workers, newConfig(opts...), pool.Target[K, R](target), nil)
}

// NewFromFactory creates a job whose target is built per worker: the
// factory runs once for each worker spawned and the produced target is
// reused for every task that worker processes. Use this when the target
// carries per-worker state such as a session or connection.
func NewFromFactory[K comparable, R any](factory Factory[K, R], workers int, opts ...Option) (*Job[K, R], error) {
	if factory == nil {
		return nil, ErrNilTarget
	}
	pf := func() pool.Target[K, R] {
		return pool.Target[K, R](factory())
	}
	return newJob[K, R](workers, newConfig(opts...), nil, pf)
}

func newJob[K comparable, R any](
	workers int,
	cfg *config,
	target pool.Target[K, R],
	factory pool.Factory[K, R],
) (*Job[K, R], error) {
	reg := registry.New[K, R]()
	queue := workqueue.New[K]()

	onTaskEnd, onRetry := checkHooks[K, R](cfg)

	popts := []pool.Option[K, R]{
		pool.WithMaxAttempts[K, R](cfg.attempts),
	}
	if target != nil {
		popts = append(popts, pool.WithTarget(target))
	} else {
		popts = append(popts, pool.WithFactory(factory))
	}
	if cfg.ratePerSecond > 0 {
		popts = append(popts, pool.WithRateLimit[K, R](cfg.ratePerSecond, cfg.rateBurst))
	}
	if cfg.pollInterval > 0 {
		popts = append(popts, pool.WithPollInterval[K, R](cfg.pollInterval))
	}
	if cfg.logger != nil {
		popts = append(popts, pool.WithLogger[K, R](cfg.logger))
	}
	if onTaskEnd != nil {
		popts = append(popts, pool.WithOnTaskEnd[K, R](onTaskEnd))
	}
	if onRetry != nil {
		popts = append(popts, pool.WithOnRetry[K, R](onRetry))
	}

	p, err := pool.New(reg, queue, popts...)
	if err != nil {
		return nil, err
	}
	if err := p.SetTargetSize(workers); err != nil {
		_ = p.Close(0)
		return nil, err
	}

	return &Job[K, R]{
		registry:       reg,
		queue:          queue,
		pool:           p,
		statusInterval: cfg.statusInterval,
		closeTimeout:   cfg.closeTimeout,
	}, nil
}

// Add enqueues key for processing. It is non-blocking. A key that was
// already added is ignored, whatever its state; a failed key is
// re-processed only through Retry, and re-adding a finished key is a
// no-op.
func (j *Job[K, R]) Add(key K) {
	if j.registry.Submit(key) {
		j.queue.Push(key)
	}
}

// AddMany enqueues all keys in order, skipping any that were already
// added. It is non-blocking.
func (j *Job[K, R]) AddMany(keys []K) {
	added := make([]K, 0, len(keys))
	for _, key := range keys {
		if j.registry.Submit(key) {
			added = append(added, key)
		}
	}
	j.queue.PushMany(added)
}

// Wait blocks until every added key is finished or failed, or until ctx
// is done. While blocked it refreshes a status line on the configured
// interval through safeprint. It returns nil when the job drained and
// ctx.Err() otherwise; either way it never alters job state, so after a
// timeout the pool keeps running and Wait may simply be called again.
func (j *Job[K, R]) Wait(ctx context.Context) error {
	return j.wait(ctx, true)
}

// WaitQuiet is Wait without the status line.
func (j *Job[K, R]) WaitQuiet(ctx context.Context) error {
	return j.wait(ctx, false)
}

// WaitTimeout waits for at most d. See Wait.
func (j *Job[K, R]) WaitTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return j.Wait(ctx)
}

func (j *Job[K, R]) wait(ctx context.Context, showStatus bool) error {
	var tick <-chan time.Time
	if showStatus {
		safeprint.SetStatus(j.statusLine())
		defer safeprint.ClearStatus()
		ticker := time.NewTicker(j.statusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		// Fetch the broadcast channel before reading the snapshot so a
		// transition between the two still wakes the loop.
		changed := j.registry.Changed()
		if j.registry.Snapshot().Active() == 0 {
			return nil
		}
		select {
		case <-changed:
		case <-tick:
			safeprint.SetStatus(j.statusLine())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetWorkerCount sets the target number of workers, n >= 0. Growth
// spawns workers immediately; shrink lets the excess finish their
// current task and exit. Zero stops all consumption without touching
// in-flight work, and still-pending keys resume when the count rises
// again.
func (j *Job[K, R]) SetWorkerCount(n int) error {
	return j.pool.SetTargetSize(n)
}

// WorkerCount returns the target number of workers.
func (j *Job[K, R]) WorkerCount() int {
	return j.pool.TargetSize()
}

// SetTarget replaces the processing function. The swap applies to tasks
// dequeued after it and to workers spawned after it; a task already in
// a worker's hand runs under the previous binding. Useful when the
// original target failed for some keys: fix it, then Retry the
// failures while keeping results already produced.
func (j *Job[K, R]) SetTarget(target Target[K, R]) error {
	if target == nil {
		return ErrNilTarget
	}
	j.pool.SetTarget(pool.Target[K, R](target))
	return nil
}

// SetFactory replaces the processing function with a per-worker
// factory. Workers whose target was already built by a factory keep it
// for their lifetime; newly spawned workers use the new factory.
func (j *Job[K, R]) SetFactory(factory Factory[K, R]) error {
	if factory == nil {
		return ErrNilTarget
	}
	j.pool.SetFactory(func() pool.Target[K, R] {
		return pool.Target[K, R](factory())
	})
	return nil
}

// SetAttempts sets the automatic retry limit, n >= 1, for failures
// recorded from now on. Attempt counts already recorded are unchanged.
func (j *Job[K, R]) SetAttempts(n int) error {
	return j.pool.SetMaxAttempts(n)
}

// Attempts returns the automatic retry limit.
func (j *Job[K, R]) Attempts() int {
	return j.pool.MaxAttempts()
}

// Pause stops workers from dequeuing new keys until Resume. Tasks
// already running complete and are recorded normally.
func (j *Job[K, R]) Pause() { j.pool.Pause() }

// Resume lets a paused job dequeue again.
func (j *Job[K, R]) Resume() { j.pool.Resume() }

// Kill stops all workers. Equivalent to SetWorkerCount(0): running
// tasks complete, pending keys stay queued for a later SetWorkerCount.
func (j *Job[K, R]) Kill() {
	_ = j.pool.SetTargetSize(0)
}

// Close drains the pool and releases it. The job's results and
// failures stay readable; adding keys after Close leaves them pending
// forever.
func (j *Job[K, R]) Close() error {
	return j.pool.Close(j.closeTimeout)
}

// Retry re-enqueues a failed key, regardless of how many attempts it
// has used. It returns ErrNotFailed if the key is not currently
// failed. The stored failure stays readable until the new attempt
// completes or fails again.
func (j *Job[K, R]) Retry(key K) error {
	if !j.registry.Requeue(key) {
		return fmt.Errorf("%w: %v", ErrNotFailed, key)
	}
	j.queue.Push(key)
	return nil
}

// RetryMany retries each key, collecting an error per key that was not
// failed. Keys that were failed are re-enqueued even when others fail
// the check.
func (j *Job[K, R]) RetryMany(keys []K) error {
	var errs []error
	for _, key := range keys {
		if err := j.Retry(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RetryAll re-enqueues every currently failed key and returns how many
// were requeued.
func (j *Job[K, R]) RetryAll() int {
	requeued := 0
	for _, key := range j.registry.FailedKeys() {
		if j.registry.Requeue(key) {
			j.queue.Push(key)
			requeued++
		}
	}
	return requeued
}

// Result returns the result for key if it finished successfully.
// It never blocks on in-flight work.
func (j *Job[K, R]) Result(key K) (R, bool) {
	return j.registry.Result(key)
}

// HasResult reports whether key finished successfully.
func (j *Job[K, R]) HasResult(key K) bool {
	_, ok := j.registry.Result(key)
	return ok
}

// Results returns a copy of all results for successfully processed
// keys.
func (j *Job[K, R]) Results() map[K]R {
	return j.registry.Results()
}

// Failure returns the latest attempt's error for key if it is
// currently failed.
func (j *Job[K, R]) Failure(key K) (error, bool) {
	return j.registry.Failure(key)
}

// HasFailure reports whether key is currently failed.
func (j *Job[K, R]) HasFailure(key K) bool {
	_, ok := j.registry.Failure(key)
	return ok
}

// Failures returns a copy of the latest errors for all currently
// failed keys.
func (j *Job[K, R]) Failures() map[K]error {
	return j.registry.Failures()
}

// Counts returns an atomic snapshot of per-status totals.
func (j *Job[K, R]) Counts() Counts {
	c := j.registry.Snapshot()
	return Counts{
		Pending:  c.Pending,
		Running:  c.Running,
		Finished: c.Finished,
		Failed:   c.Failed,
	}
}
