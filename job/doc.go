// Package job provides a dynamically-resizable worker pool that applies
// one target function to a stream of keyed inputs, tracking each
// input's lifecycle and letting the controlling goroutine inspect,
// reconfigure and wait on the work while it runs.
//
// The primary type is Job[K, R]: inputs of comparable type K are
// deduplicated, queued FIFO, and processed by a live-resizable set of
// workers into results of type R.
//
// # Basic Usage
//
//	check := func(ctx context.Context, url string) (int, error) {
//	    resp, err := http.Get(url)
//	    if err != nil {
//	        return 0, err
//	    }
//	    defer resp.Body.Close()
//	    return resp.StatusCode, nil
//	}
//
//	j, _ := job.New(check, 10)
//	j.AddMany(urls)
//	_ = j.Wait(context.Background())
//	codes := j.Results()
//
// # Lifecycle
//
// Every added key moves through pending → running → finished or failed.
// A failed key is retried automatically by the worker itself while its
// attempt count is below the limit (job.WithAttempts), and stays
// queryable via Failure/Failures until retried manually. Manual
// Retry/RetryMany/RetryAll always re-enqueue a failed key, regardless
// of the attempt limit.
//
// # Live Reconfiguration
//
// SetWorkerCount grows or shrinks the pool at any time without
// interrupting in-flight work; Kill is SetWorkerCount(0). SetTarget and
// SetFactory swap the processing function for tasks dequeued from then
// on. Pause and Resume gate dequeuing while leaving running tasks
// untouched.
//
// # Per-Worker State
//
// When the target needs per-worker resources (a session, a connection),
// construct the job with NewFromFactory: the factory runs once per
// worker and the produced target is reused for every task that worker
// processes.
//
// # Console Output
//
// Wait shows a live status line. Target functions that print should use
// the safeprint package so their output never interleaves with other
// workers or with the status line.
package job
