package job

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Job.
type Option func(*config)

type config struct {
	attempts       int
	statusInterval time.Duration
	pollInterval   time.Duration
	closeTimeout   time.Duration
	ratePerSecond  float64
	rateBurst      int
	logger         *slog.Logger

	// Hooks are stored untyped so the option type can stay
	// non-generic; the constructor re-checks them against K and R.
	onTaskEnd any
	onRetry   any
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		attempts:       1,
		statusInterval: time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithAttempts sets the number of attempts for each key before it is
// considered failed and left for manual retry. Values below one are
// ignored; the default is one (no automatic retries).
func WithAttempts(n int) Option {
	return func(cfg *config) {
		if n >= 1 {
			cfg.attempts = n
		}
	}
}

// WithRateLimit caps target invocations across all workers.
// perSecond specifies the maximum sustained invocation rate and burst
// the maximum burst size. Useful when the target calls an external
// service. If not specified, no rate limiting is applied.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cfg *config) {
		if perSecond > 0 && burst > 0 {
			cfg.ratePerSecond = perSecond
			cfg.rateBurst = burst
		}
	}
}

// WithStatusInterval sets how often Wait refreshes the status line.
// The default is one second.
func WithStatusInterval(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.statusInterval = d
		}
	}
}

// WithPollInterval sets how long an idle worker sleeps between queue
// polls. Shorter intervals make pause and resize signals more
// responsive at the cost of idle wakeups. The default is 100ms.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.pollInterval = d
		}
	}
}

// WithCloseTimeout bounds how long Close waits for workers to finish
// their current tasks. The default (zero) waits forever.
func WithCloseTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.closeTimeout = d
		}
	}
}

// WithLogger sets a logger for worker lifecycle and task failure
// events. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithOnTaskEnd registers a hook invoked after every attempt, outside
// all locks, with the key, the result (zero value on failure) and the
// error (nil on success). The hook's key and result types must match
// the job's; a mismatch panics at construction.
func WithOnTaskEnd[K comparable, R any](fn func(K, R, error)) Option {
	return func(cfg *config) {
		cfg.onTaskEnd = fn
	}
}

// WithOnRetry registers a hook invoked when a failed attempt is about
// to be retried automatically, with the key, the attempt number that
// failed, and the error. The hook's key type must match the job's; a
// mismatch panics at construction.
func WithOnRetry[K comparable](fn func(K, int, error)) Option {
	return func(cfg *config) {
		cfg.onRetry = fn
	}
}

// checkHooks asserts the untyped hooks against the job's key and result
// types, panicking with the expected signature on a mismatch.
func checkHooks[K comparable, R any](cfg *config) (onTaskEnd func(K, R, error), onRetry func(K, int, error)) {
	if cfg.onTaskEnd != nil {
		fn, ok := cfg.onTaskEnd.(func(K, R, error))
		if !ok {
			panic(fmt.Sprintf("WithOnTaskEnd hook has type %T, job expects func(%T, %T, error)",
				cfg.onTaskEnd, *new(K), *new(R)))
		}
		onTaskEnd = fn
	}
	if cfg.onRetry != nil {
		fn, ok := cfg.onRetry.(func(K, int, error))
		if !ok {
			panic(fmt.Sprintf("WithOnRetry hook has type %T, job expects func(%T, int, error)",
				cfg.onRetry, *new(K)))
		}
		onRetry = fn
	}
	return onTaskEnd, onRetry
}
