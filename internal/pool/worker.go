package pool

import (
	"fmt"
	"runtime"
	"time"
)

// workerState is the per-worker slice of pool state: the invocable the
// worker currently runs tasks through, the binding generation it was
// resolved from, and whether a factory built it. A factory-built
// invocable is owned by this worker and is never rebuilt mid-life.
type workerState[K comparable, R any] struct {
	id          int64
	invoke      Target[K, R]
	gen         uint64
	fromFactory bool
	exited      bool
}

// runWorker is one worker loop. Each iteration: honor shrink, honor
// pause, re-resolve the target binding, pop a key, run it. The loop
// holds at most one task at a time and never aborts an invocation.
func (p *Pool[K, R]) runWorker(id int64) error {
	w := &workerState[K, R]{id: id}
	p.logger.Debug("worker started", "worker", id)
	defer func() {
		if !w.exited {
			p.mu.Lock()
			p.alive--
			p.mu.Unlock()
		}
		p.logger.Debug("worker stopped", "worker", id)
	}()

	for {
		if p.exitCheck(w) {
			return nil
		}

		if paused, resumed := p.pauseGate(); paused {
			// Idle without consuming; wake on resume, on pool
			// shutdown, or periodically to re-check shrink.
			select {
			case <-resumed:
			case <-time.After(p.pollInterval):
			case <-p.ctx.Done():
				return nil
			}
			continue
		}

		p.rebind(w)

		// Fetch the wake channel before the pop attempt so a push
		// landing between the two still wakes this worker.
		notify := p.queue.Notify()
		key, ok := p.queue.TryPop()
		if !ok {
			select {
			case <-notify:
			case <-time.After(p.pollInterval):
			case <-p.ctx.Done():
				return nil
			}
			continue
		}

		p.runTask(w, key)
	}
}

// exitCheck implements shrink: when more workers are alive than the
// target size, the worker claims one of the excess slots and exits.
// Claiming and decrementing happen under the same lock so exactly
// alive-target workers stop.
func (p *Pool[K, R]) exitCheck(w *workerState[K, R]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alive > p.targetSize {
		p.alive--
		w.exited = true
		return true
	}
	return false
}

func (p *Pool[K, R]) pauseGate() (bool, <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return false, nil
	}
	return true, p.resumed
}

// rebind re-resolves the worker's invocable against the active binding.
// A worker already bound from a factory keeps its invocable; everyone
// else picks up the current binding, invoking a factory (outside the
// pool lock, it may block) at most once.
func (p *Pool[K, R]) rebind(w *workerState[K, R]) {
	p.mu.Lock()
	b := p.bind
	p.mu.Unlock()

	if w.gen == b.gen || w.fromFactory {
		return
	}
	if b.factory != nil {
		w.invoke = b.factory()
		w.fromFactory = true
	} else {
		w.invoke = b.direct
	}
	w.gen = b.gen
}

// runTask executes one dequeued key: mark Running, invoke, record the
// outcome, and re-enqueue automatically while the attempt limit allows.
func (p *Pool[K, R]) runTask(w *workerState[K, R], key K) {
	p.registry.Begin(key)

	result, err := p.invokeTarget(w.invoke, key)
	if err == nil {
		p.registry.Complete(key, result)
		if p.onTaskEnd != nil {
			p.onTaskEnd(key, result, nil)
		}
		return
	}

	attempts := p.registry.Fail(key, err)
	p.logger.Debug("task failed", "worker", w.id, "key", key, "attempt", attempts, "err", err)
	if p.onTaskEnd != nil {
		p.onTaskEnd(key, result, err)
	}

	if attempts < p.MaxAttempts() {
		// A concurrent manual retry may claim the Failed->Pending
		// transition first; the hook fires only for requeues this
		// worker actually performed.
		if p.registry.Requeue(key) {
			if p.onRetry != nil {
				p.onRetry(key, attempts, err)
			}
			p.queue.Push(key)
		}
	}
}

// invokeTarget runs the user target with panic recovery so a raised
// condition can never escape the worker loop or crash the pool. The
// rate limiter, when configured, gates every invocation.
func (p *Pool[K, R]) invokeTarget(fn Target[K, R], key K) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("target panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	if p.limiter != nil {
		if lerr := p.limiter.Wait(p.ctx); lerr != nil {
			return result, fmt.Errorf("rate limiter: %w", lerr)
		}
	}
	return fn(p.ctx, key)
}
