// Package batchjobs runs collections of items through a processing function
// with bounded concurrency, retries, progress reporting, and pause control.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// One-shot batch:
//
//	result := batchjobs.ProcessBatch(ctx, prompts, generate,
//	    batchjobs.Concurrency(3),
//	    batchjobs.Retries(2),
//	)
//
// Stateful processor:
//
//	p := batchjobs.NewProcessor(generate)
//	p.AddItems(prompts...)
//	result, err := p.Start(ctx)
//
// Long-lived queue:
//
//	q := batchjobs.NewQueue(render, batchjobs.QueueConcurrency(4))
//	q.OnUpdate(func(jobs []batchjobs.Job[string, Image]) { ... })
//	q.Add("a", "b")
package batchjobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/batch"
	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/jobctx"
	"github.com/jdziat/simple-batch-jobs/pkg/pool"
	"github.com/jdziat/simple-batch-jobs/pkg/queue"
	"github.com/jdziat/simple-batch-jobs/pkg/retry"
	"github.com/jdziat/simple-batch-jobs/pkg/schedule"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
	"github.com/jdziat/simple-batch-jobs/pkg/storage"
)

// Type aliases
type (
	// Job represents one unit of work submitted for processing.
	Job[I, O any] = core.Job[I, O]

	// Status represents the current state of a job.
	Status = core.Status

	// Counts holds the number of jobs per status.
	Counts = core.Counts

	// Failure describes a failed job.
	Failure = core.Failure

	// Result is the outcome of a batch run.
	Result[O any] = core.Result[O]

	// Store defines the persistence layer for job and run records.
	Store = core.Store

	// Record is the persisted form of a job.
	Record = core.Record

	// RunRecord summarises one processor run.
	RunRecord = core.RunRecord

	// Event is the interface for all queue events.
	Event = core.Event

	// JobStarted is emitted when a queued job attempt starts.
	JobStarted = core.JobStarted

	// JobRetrying is emitted when a failed attempt will be retried.
	JobRetrying = core.JobRetrying

	// JobProgressed is emitted when a job reports progress.
	JobProgressed = core.JobProgressed

	// JobCompleted is emitted when a job completes successfully.
	JobCompleted = core.JobCompleted

	// JobFailed is emitted when a job fails permanently.
	JobFailed = core.JobFailed

	// QueueCleared is emitted when a queue drops its jobs.
	QueueCleared = core.QueueCleared

	// QueuePaused is emitted when a queue is paused.
	QueuePaused = core.QueuePaused

	// QueueResumed is emitted when a queue resumes.
	QueueResumed = core.QueueResumed

	// NoRetryError indicates an error that should not be retried.
	NoRetryError = core.NoRetryError

	// RetryAfterError indicates an error that should be retried after a delay.
	RetryAfterError = core.RetryAfterError

	// Func processes one item of a batch.
	Func[I, O any] = batch.Func[I, O]

	// Processor accumulates items and runs them on Start.
	Processor[I, O any] = batch.Processor[I, O]

	// ProcessorStatus is a point-in-time view of a Processor.
	ProcessorStatus = batch.ProcessorStatus

	// Option modifies batch Options.
	Option = batch.Option

	// Options holds configuration for a batch run.
	Options = batch.Options

	// Queue runs added items as slots free up.
	Queue[I, O any] = queue.Queue[I, O]

	// QueueFunc processes one queued item.
	QueueFunc[I, O any] = queue.Func[I, O]

	// QueueOption modifies queue Options.
	QueueOption = queue.Option

	// RetryPolicy controls attempts and backoff.
	RetryPolicy = retry.Policy

	// Refill decides when a free slot is handed to the next job.
	Refill = pool.Refill

	// Schedule determines when a recurring run fires.
	Schedule = schedule.Schedule

	// GormStore implements Store using GORM.
	GormStore = storage.GormStore
)

// Status constants
const (
	StatusPending    = core.StatusPending
	StatusProcessing = core.StatusProcessing
	StatusCompleted  = core.StatusCompleted
	StatusFailed     = core.StatusFailed
)

// Refill policies
const (
	Immediate = pool.Immediate
	Barrier   = pool.Barrier
)

// Security limits
const (
	MaxNameLength         = security.MaxNameLength
	MaxRetries            = security.MaxRetries
	MaxConcurrency        = security.MaxConcurrency
	MaxErrorMessageLength = security.MaxErrorMessageLength
)

// Error variables
var (
	ErrAlreadyRunning = core.ErrAlreadyRunning
	ErrInvalidName    = core.ErrInvalidName
	ErrNameTooLong    = core.ErrNameTooLong
	ErrNoStore        = core.ErrNoStore
)

// ProcessBatch runs every item through fn and returns once all of them finished.
func ProcessBatch[I, O any](ctx context.Context, items []I, fn Func[I, O], opts ...Option) *Result[O] {
	return batch.ProcessBatch(ctx, items, fn, opts...)
}

// NewProcessor creates a Processor.
func NewProcessor[I, O any](fn Func[I, O], opts ...Option) *Processor[I, O] {
	return batch.NewProcessor(fn, opts...)
}

// NewQueue creates a Queue.
func NewQueue[I, O any](fn QueueFunc[I, O], opts ...QueueOption) *Queue[I, O] {
	return queue.New(fn, opts...)
}

// OpenStore connects to a SQLite or PostgreSQL database and migrates it.
func OpenStore(ctx context.Context, driver, dsn string, opts ...storage.PoolOption) (*GormStore, error) {
	return storage.Open(ctx, driver, dsn, opts...)
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return core.NoRetry(err)
}

// RetryAfter wraps an error to indicate it should be retried after a delay.
func RetryAfter(d time.Duration, err error) error {
	return core.RetryAfter(d, err)
}

// ErrorMessage returns the message recorded for a failed job.
func ErrorMessage(err error) string {
	return core.ErrorMessage(err)
}

// Batch option functions

// Concurrency sets the maximum number of jobs processed at once.
func Concurrency(n int) Option {
	return batch.Concurrency(n)
}

// Retries sets how many additional attempts a failing job gets.
func Retries(n int) Option {
	return batch.Retries(n)
}

// RetryDelay sets the base delay between attempts.
func RetryDelay(d time.Duration) Option {
	return batch.RetryDelay(d)
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return batch.WithRetryPolicy(p)
}

// WithRefill sets the slot refill policy.
func WithRefill(r Refill) Option {
	return batch.WithRefill(r)
}

// JobTimeout bounds each attempt.
func JobTimeout(d time.Duration) Option {
	return batch.JobTimeout(d)
}

// Name sets the processor name.
func Name(name string) Option {
	return batch.Name(name)
}

// WithStore persists job and run records.
func WithStore(s Store) Option {
	return batch.WithStore(s)
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return batch.WithLogger(l)
}

// OnJobStart is called once before a job's first attempt.
func OnJobStart(fn func(jobID string)) Option {
	return batch.OnJobStart(fn)
}

// OnJobComplete is called when a job succeeds.
func OnJobComplete(fn func(jobID string, output any)) Option {
	return batch.OnJobComplete(fn)
}

// OnJobError is called when a job fails for good.
func OnJobError(fn func(jobID string, err error)) Option {
	return batch.OnJobError(fn)
}

// OnJobRetry is called after a failed attempt that will be retried.
func OnJobRetry(fn func(jobID string, attempt int, err error)) Option {
	return batch.OnJobRetry(fn)
}

// OnProgress is called after every finished job.
func OnProgress(fn func(completed, total int, jobID string)) Option {
	return batch.OnProgress(fn)
}

// Queue option functions

// QueueConcurrency sets how many queued jobs may run at once.
func QueueConcurrency(n int) QueueOption {
	return queue.Concurrency(n)
}

// QueueName sets the queue name.
func QueueName(name string) QueueOption {
	return queue.Name(name)
}

// QueueRetryPolicy sets the queue retry policy. Queues do not retry by default.
func QueueRetryPolicy(p RetryPolicy) QueueOption {
	return queue.WithRetryPolicy(p)
}

// QueueJobTimeout bounds each queued attempt.
func QueueJobTimeout(d time.Duration) QueueOption {
	return queue.JobTimeout(d)
}

// QueueStore persists queued jobs.
func QueueStore(s Store) QueueOption {
	return queue.WithStore(s)
}

// QueueLogger sets the queue logger.
func QueueLogger(l *slog.Logger) QueueOption {
	return queue.WithLogger(l)
}

// Retry policies

// NoRetries returns a policy with a single attempt.
func NoRetries() RetryPolicy {
	return retry.Once()
}

// LinearBackoff retries up to retries times, waiting delay*attempt.
func LinearBackoff(retries int, delay time.Duration) RetryPolicy {
	return retry.Linear(retries, delay)
}

// ExponentialBackoff retries up to retries times, doubling the wait up to max.
func ExponentialBackoff(retries int, initial, max time.Duration) RetryPolicy {
	return retry.Exponential(retries, initial, max)
}

// Schedule functions

// Every creates a schedule that fires every d, aligned to multiples of d.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Daily creates a schedule that fires at a specific time each day.
func Daily(hour, minute int) Schedule {
	return schedule.Daily(hour, minute)
}

// Weekly creates a schedule that fires at a specific day and time each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return schedule.Weekly(day, hour, minute)
}

// At creates a schedule that fires at hour:minute in loc on the given days,
// or every day when no days are given.
func At(loc *time.Location, hour, minute int, days ...time.Weekday) Schedule {
	return schedule.At(loc, hour, minute, days...)
}

// Cron creates a schedule from a cron expression.
func Cron(expr string) (Schedule, error) {
	return schedule.Cron(expr)
}

// RunSchedule calls fn on every tick of sched until ctx is done.
func RunSchedule(ctx context.Context, sched Schedule, fn func(ctx context.Context, at time.Time)) error {
	return schedule.Run(ctx, sched, fn)
}

// Job context helpers

// JobIDFromContext returns the current job ID, or "" outside a job.
func JobIDFromContext(ctx context.Context) string {
	return jobctx.JobID(ctx)
}

// AttemptFromContext returns the current attempt number, or 0 outside a job.
func AttemptFromContext(ctx context.Context) int {
	return jobctx.Attempt(ctx)
}

// ReportProgress records progress (0-100) for the current job.
func ReportProgress(ctx context.Context, pct float64) bool {
	return jobctx.ReportProgress(ctx, pct)
}
