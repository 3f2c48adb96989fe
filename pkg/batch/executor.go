package batch

import (
	"context"
	"sync"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/internal/handler"
	"github.com/jdziat/simple-batch-jobs/pkg/jobctx"
	"github.com/jdziat/simple-batch-jobs/pkg/pool"
	"github.com/jdziat/simple-batch-jobs/pkg/retry"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Func processes one item. index is the item's position in the run.
type Func[I, O any] func(ctx context.Context, item I, index int) (O, error)

// execution drives one run over a fixed slice of jobs.
// mu guards the job records; cbMu serialises every callback so callers
// never observe two callbacks at once.
type execution[I, O any] struct {
	opts *Options
	fn   Func[I, O]
	jobs []*core.Job[I, O]
	mu   *sync.Mutex

	cbMu      sync.Mutex
	completed int
	result    *core.Result[O]
}

func newExecution[I, O any](opts *Options, fn Func[I, O], jobs []*core.Job[I, O], mu *sync.Mutex) *execution[I, O] {
	return &execution[I, O]{
		opts: opts,
		fn:   fn,
		jobs: jobs,
		mu:   mu,
		result: &core.Result[O]{
			Successful: []O{},
			Failed:     []core.Failure{},
		},
	}
}

// run processes every job and returns the unstarted tail when the gate
// stopped or ctx ended early.
func (e *execution[I, O]) run(ctx context.Context, gate *pool.Gate) (*core.Result[O], []*core.Job[I, O], error) {
	start := time.Now()

	p := pool.New(e.opts.Concurrency, e.opts.Refill, gate)
	started, err := p.Run(ctx, len(e.jobs), e.runJob)

	e.result.TotalTime = time.Since(start)
	return e.result, e.jobs[started:], err
}

func (e *execution[I, O]) runJob(ctx context.Context, index int) {
	job := e.jobs[index]
	log := e.opts.Logger.With("job_id", job.ID, "source", e.opts.Name)

	e.notify(func() {
		if e.opts.OnJobStart != nil {
			e.opts.OnJobStart(job.ID)
		}
	})

	var out O
	startTime := time.Now()
	err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context, attempt int) error {
		e.mu.Lock()
		job.Begin(time.Now())
		e.mu.Unlock()
		log.Debug("job attempt started", "attempt", attempt)

		actx := jobctx.WithJob(ctx, job.ID, attempt, func(pct float64) {
			e.mu.Lock()
			job.Progress = pct
			e.mu.Unlock()
		})

		var attemptErr error
		out, attemptErr = handler.Execute(actx, e.opts.JobTimeout, func(ctx context.Context) (O, error) {
			return e.fn(ctx, job.Input, index)
		})
		return attemptErr
	}, func(attempt int, err error, wait time.Duration) {
		log.Warn("job attempt failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		e.notify(func() {
			if e.opts.OnJobRetry != nil {
				e.opts.OnJobRetry(job.ID, attempt, err)
			}
		})
	})

	e.notify(func() {
		now := time.Now()
		total := len(e.jobs)

		e.mu.Lock()
		if err == nil {
			job.Complete(out, now)
			e.result.Successful = append(e.result.Successful, out)
		} else {
			msg := security.SanitizeErrorMessage(core.ErrorMessage(err))
			job.Fail(msg, now)
			e.result.Failed = append(e.result.Failed, core.Failure{JobID: job.ID, Error: msg})
		}
		e.completed++
		completed := e.completed
		e.mu.Unlock()

		if err == nil {
			log.Debug("job completed", "duration", now.Sub(startTime))
			if e.opts.OnJobComplete != nil {
				e.opts.OnJobComplete(job.ID, out)
			}
		} else {
			log.Warn("job failed", "error", err)
			if e.opts.OnJobError != nil {
				e.opts.OnJobError(job.ID, err)
			}
		}
		if e.opts.OnProgress != nil {
			e.opts.OnProgress(completed, total, job.ID)
		}
	})
}

func (e *execution[I, O]) notify(fn func()) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	fn()
}
