package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// ProcessBatch runs every item through fn with bounded concurrency and retries.
//
// Jobs are identified as job_<index>. Successful outputs are in completion order.
// Failures never abort the batch; they are returned in Result.Failed. If ctx ends
// before every job has started, the unstarted jobs are reported as failed with the
// context error and no callbacks fire for them.
func ProcessBatch[I, O any](ctx context.Context, items []I, fn Func[I, O], opts ...Option) *core.Result[O] {
	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}

	if len(items) == 0 {
		return &core.Result[O]{Successful: []O{}, Failed: []core.Failure{}}
	}

	jobs := make([]*core.Job[I, O], len(items))
	for i, item := range items {
		jobs[i] = core.NewJob[I, O](fmt.Sprintf("job_%d", i), item)
	}

	var mu sync.Mutex
	e := newExecution(options, fn, jobs, &mu)
	result, unstarted, err := e.run(ctx, nil)
	if err != nil {
		msg := security.SanitizeErrorMessage(core.ErrorMessage(err))
		now := time.Now()
		for _, job := range unstarted {
			job.Fail(msg, now)
			result.Failed = append(result.Failed, core.Failure{JobID: job.ID, Error: msg})
		}
		options.Logger.Warn("batch interrupted", "source", options.Name, "unstarted", len(unstarted), "error", err)
	}
	return result
}
