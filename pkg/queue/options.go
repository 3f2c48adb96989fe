package queue

import (
	"log/slog"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/retry"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Default values.
var (
	DefaultConcurrency = 3
	DefaultName        = "default"
)

// Options holds configuration for a Queue.
type Options struct {
	Concurrency int
	Name        string
	Retry       retry.Policy
	JobTimeout  time.Duration
	Store       core.Store
	Logger      *slog.Logger
}

// NewOptions creates Options with defaults. Failed jobs are not retried.
func NewOptions() *Options {
	return &Options{
		Concurrency: DefaultConcurrency,
		Name:        DefaultName,
		Retry:       retry.Once(),
		Logger:      slog.Default(),
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Concurrency sets how many jobs may be processing at once.
// Values are clamped to [1, MaxConcurrency].
func Concurrency(n int) Option {
	return optionFunc(func(o *Options) {
		o.Concurrency = security.ClampConcurrency(n)
	})
}

// Name sets the queue name. It is used as the record source in the store.
func Name(name string) Option {
	return optionFunc(func(o *Options) {
		o.Name = name
	})
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return optionFunc(func(o *Options) {
		o.Retry = p
	})
}

// JobTimeout bounds each attempt. Zero means no timeout.
// A timed-out job keeps its slot until the function returns.
func JobTimeout(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		o.JobTimeout = d
	})
}

// WithStore persists every job transition to s.
func WithStore(s core.Store) Option {
	return optionFunc(func(o *Options) {
		o.Store = s
	})
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	})
}
