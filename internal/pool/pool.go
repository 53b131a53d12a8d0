// Package pool implements the dynamically-sized worker set that drains
// the queue and records outcomes in the registry.
//
// The pool holds a mutable target size and continuously reconciles the
// number of live workers toward it: growth spawns goroutines, shrink
// marks workers for exit at their next iteration boundary. A worker is
// never interrupted mid-task.
package pool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/meanwhile/internal/registry"
	"github.com/utkarsh5026/meanwhile/internal/workqueue"
)

var (
	ErrInvalidSize     = errors.New("pool: target size must be >= 0")
	ErrInvalidAttempts = errors.New("pool: max attempts must be >= 1")
	ErrClosed          = errors.New("pool: closed")
	ErrCloseTimeout    = errors.New("pool: timeout waiting for workers to exit")
	ErrNoTarget        = errors.New("pool: no target bound")
)

const defaultPollInterval = 100 * time.Millisecond

// Target processes one input key and returns its result. It may block
// on arbitrary I/O; the pool holds no locks across an invocation.
type Target[K comparable, R any] func(ctx context.Context, key K) (R, error)

// Factory builds a per-worker Target. It is invoked exactly once per
// worker, at worker start or when an unbound worker picks up a factory
// binding, and the produced Target is owned by that worker for the rest
// of its life.
type Factory[K comparable, R any] func() Target[K, R]

// binding is the active target: exactly one of direct or factory is
// non-nil. gen increases on every swap so workers can detect staleness
// at iteration boundaries.
type binding[K comparable, R any] struct {
	gen     uint64
	direct  Target[K, R]
	factory Factory[K, R]
}

// Option configures a Pool.
type Option[K comparable, R any] func(*Pool[K, R])

// WithTarget sets the initial direct target shared by all workers.
func WithTarget[K comparable, R any](t Target[K, R]) Option[K, R] {
	return func(p *Pool[K, R]) {
		p.bind = binding[K, R]{gen: 1, direct: t}
	}
}

// WithFactory sets the initial target factory, invoked once per worker.
func WithFactory[K comparable, R any](f Factory[K, R]) Option[K, R] {
	return func(p *Pool[K, R]) {
		p.bind = binding[K, R]{gen: 1, factory: f}
	}
}

// WithMaxAttempts sets the automatic retry limit per key. Values below
// one are ignored; the default is one attempt (no automatic retries).
func WithMaxAttempts[K comparable, R any](n int) Option[K, R] {
	return func(p *Pool[K, R]) {
		if n >= 1 {
			p.maxAttempts = n
		}
	}
}

// WithRateLimit caps target invocations across all workers. Useful when
// the target calls an external service. Non-positive arguments disable
// the limiter.
func WithRateLimit[K comparable, R any](perSecond float64, burst int) Option[K, R] {
	return func(p *Pool[K, R]) {
		if perSecond > 0 && burst > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithPollInterval sets how long an idle worker sleeps between queue
// polls. Shorter intervals make pause/resize signals more responsive at
// the cost of idle wakeups.
func WithPollInterval[K comparable, R any](d time.Duration) Option[K, R] {
	return func(p *Pool[K, R]) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithLogger sets the logger for worker lifecycle and task failure
// events. The default logger discards everything.
func WithLogger[K comparable, R any](l *slog.Logger) Option[K, R] {
	return func(p *Pool[K, R]) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithOnTaskEnd registers a hook invoked after every attempt, outside
// all pool locks, with the key, the result (zero on failure) and the
// error (nil on success).
func WithOnTaskEnd[K comparable, R any](fn func(K, R, error)) Option[K, R] {
	return func(p *Pool[K, R]) {
		p.onTaskEnd = fn
	}
}

// WithOnRetry registers a hook invoked when a failed attempt is about
// to be re-enqueued automatically, with the key, the attempt number
// that failed, and the error.
func WithOnRetry[K comparable, R any](fn func(K, int, error)) Option[K, R] {
	return func(p *Pool[K, R]) {
		p.onRetry = fn
	}
}

// Pool is a managed set of worker loops draining one queue into one
// registry.
type Pool[K comparable, R any] struct {
	registry *registry.Registry[K, R]
	queue    *workqueue.Queue[K]

	limiter      *rate.Limiter
	pollInterval time.Duration
	logger       *slog.Logger

	onTaskEnd func(K, R, error)
	onRetry   func(K, int, error)

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu          sync.Mutex
	bind        binding[K, R]
	maxAttempts int
	targetSize  int
	alive       int
	nextID      int64
	paused      bool
	resumed     chan struct{}
	closed      bool
}

// New creates a pool with zero workers. One of WithTarget or
// WithFactory must be supplied; call SetTargetSize to start workers.
func New[K comparable, R any](
	reg *registry.Registry[K, R],
	queue *workqueue.Queue[K],
	opts ...Option[K, R],
) (*Pool[K, R], error) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[K, R]{
		registry:     reg,
		queue:        queue,
		pollInterval: defaultPollInterval,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxAttempts:  1,
		ctx:          ctx,
		cancel:       cancel,
		group:        &errgroup.Group{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bind.gen == 0 {
		cancel()
		return nil, ErrNoTarget
	}
	return p, nil
}

// SetTargetSize sets the desired number of live workers and reconciles
// toward it. Growth spawns workers immediately; shrink marks the excess
// for exit, each finishing its current task (if any) first. Zero drains
// the pool without touching in-flight work.
func (p *Pool[K, R]) SetTargetSize(n int) error {
	if n < 0 {
		return ErrInvalidSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.targetSize = n
	p.reconcileLocked()
	return nil
}

// TargetSize returns the desired worker count.
func (p *Pool[K, R]) TargetSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetSize
}

// Alive returns the number of workers that have not yet exited.
func (p *Pool[K, R]) Alive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Pause stops idle workers from dequeuing new work. Workers already
// running a task finish and record it before idling.
func (p *Pool[K, R]) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.paused = true
		p.resumed = make(chan struct{})
	}
}

// Resume lets paused workers dequeue again.
func (p *Pool[K, R]) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		close(p.resumed)
	}
}

// Paused reports whether the pool is paused.
func (p *Pool[K, R]) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// SetTarget swaps the active binding to a direct target. The swap
// applies to tasks dequeued after it and to workers spawned after it; a
// task already in a worker's hand runs under the binding that worker
// resolved before popping.
func (p *Pool[K, R]) SetTarget(t Target[K, R]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bind = binding[K, R]{gen: p.bind.gen + 1, direct: t}
	p.logger.Debug("target swapped", "gen", p.bind.gen)
}

// SetFactory swaps the active binding to a factory. Workers whose
// invocable was already built by a factory keep it for their lifetime;
// everyone else rebinds at the next iteration boundary.
func (p *Pool[K, R]) SetFactory(f Factory[K, R]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bind = binding[K, R]{gen: p.bind.gen + 1, factory: f}
	p.logger.Debug("target factory swapped", "gen", p.bind.gen)
}

// SetMaxAttempts sets the automatic retry limit for future failures.
// Attempt counts already recorded are unaffected.
func (p *Pool[K, R]) SetMaxAttempts(n int) error {
	if n < 1 {
		return ErrInvalidAttempts
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxAttempts = n
	return nil
}

// MaxAttempts returns the current automatic retry limit.
func (p *Pool[K, R]) MaxAttempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxAttempts
}

// Close drains the pool: target size drops to zero, paused workers are
// released so they can exit, and Close waits up to timeout (zero means
// forever) for every worker to finish its current task and stop.
func (p *Pool[K, R]) Close(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	p.targetSize = 0
	if p.paused {
		p.paused = false
		close(p.resumed)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()
	err := waitUntil(done, timeout)
	p.cancel()
	return err
}

// reconcileLocked spawns workers until the live count reaches the
// target. Shrinking is handled by the workers themselves via exitCheck.
func (p *Pool[K, R]) reconcileLocked() {
	for p.alive < p.targetSize {
		p.alive++
		p.nextID++
		id := p.nextID
		p.group.Go(func() error {
			return p.runWorker(id)
		})
	}
}

// waitUntil blocks until done is closed or the timeout elapses. A zero
// timeout waits forever.
func waitUntil(done <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrCloseTimeout
	}
}
