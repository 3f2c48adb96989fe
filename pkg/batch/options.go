package batch

import (
	"log/slog"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/pool"
	"github.com/jdziat/simple-batch-jobs/pkg/retry"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Default values.
var (
	DefaultConcurrency = 3
	DefaultRetries     = 1
	DefaultRetryDelay  = time.Second
)

// Options holds configuration for a batch run.
type Options struct {
	Concurrency int
	Retry       retry.Policy
	Refill      pool.Refill
	JobTimeout  time.Duration
	Name        string
	Store       core.Store
	Logger      *slog.Logger

	OnJobStart    func(jobID string)
	OnJobComplete func(jobID string, output any)
	OnJobError    func(jobID string, err error)
	OnJobRetry    func(jobID string, attempt int, err error)
	OnProgress    func(completed, total int, jobID string)
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Concurrency: DefaultConcurrency,
		Retry:       retry.Linear(DefaultRetries, DefaultRetryDelay),
		Refill:      pool.Barrier,
		Name:        "default",
		Logger:      slog.Default(),
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Concurrency sets the maximum number of jobs processed at once.
// Values are clamped to [1, MaxConcurrency].
func Concurrency(n int) Option {
	return optionFunc(func(o *Options) {
		o.Concurrency = security.ClampConcurrency(n)
	})
}

// Retries sets how many additional attempts a failing job gets.
// Values are clamped to [0, MaxRetries].
func Retries(n int) Option {
	return optionFunc(func(o *Options) {
		o.Retry.MaxAttempts = security.ClampRetries(n) + 1
	})
}

// RetryDelay sets the base delay between attempts.
func RetryDelay(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.Retry.Delay = d
	})
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return optionFunc(func(o *Options) {
		o.Retry = p
	})
}

// WithRefill selects how freed slots are reused.
func WithRefill(r pool.Refill) Option {
	return optionFunc(func(o *Options) {
		o.Refill = r
	})
}

// JobTimeout bounds every attempt. Zero disables the timeout.
// An attempt that runs past the timeout fails with the context error, but
// its slot is held until the function returns.
func JobTimeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.JobTimeout = d
	})
}

// Name sets the source name used in logs and persisted records.
func Name(name string) Option {
	return optionFunc(func(o *Options) {
		o.Name = name
	})
}

// WithStore persists job and run records after each Processor run.
func WithStore(s core.Store) Option {
	return optionFunc(func(o *Options) {
		o.Store = s
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	})
}

// OnJobStart is called once per job, before its first attempt.
func OnJobStart(fn func(jobID string)) Option {
	return optionFunc(func(o *Options) {
		o.OnJobStart = fn
	})
}

// OnJobComplete is called once when a job succeeds.
func OnJobComplete(fn func(jobID string, output any)) Option {
	return optionFunc(func(o *Options) {
		o.OnJobComplete = fn
	})
}

// OnJobError is called once when a job has exhausted its attempts.
func OnJobError(fn func(jobID string, err error)) Option {
	return optionFunc(func(o *Options) {
		o.OnJobError = fn
	})
}

// OnJobRetry is called after each failed attempt that will be retried.
func OnJobRetry(fn func(jobID string, attempt int, err error)) Option {
	return optionFunc(func(o *Options) {
		o.OnJobRetry = fn
	})
}

// OnProgress is called after every terminal job outcome.
// completed grows by one per call and reaches total on the last job.
func OnProgress(fn func(completed, total int, jobID string)) Option {
	return optionFunc(func(o *Options) {
		o.OnProgress = fn
	})
}
