package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/pool"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// ProcessorStatus is a point-in-time view of a Processor.
type ProcessorStatus struct {
	IsRunning bool
	IsPaused  bool
	core.Counts
}

// Processor accumulates items and runs the pending ones on Start.
type Processor[I, O any] struct {
	fn   Func[I, O]
	opts *Options
	gate *pool.Gate

	mu        sync.Mutex
	jobs      []*core.Job[I, O]
	positions map[string]int64
	nextPos   int64
	running   bool
}

// NewProcessor creates a Processor. It panics if the configured name is invalid.
func NewProcessor[I, O any](fn Func[I, O], opts ...Option) *Processor[I, O] {
	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}
	if err := security.ValidateName(options.Name); err != nil {
		panic(fmt.Sprintf("batch: invalid processor name %q: %v", options.Name, err))
	}

	return &Processor[I, O]{
		fn:        fn,
		opts:      options,
		gate:      pool.NewGate(),
		positions: make(map[string]int64),
	}
}

// AddItems appends a pending job per item and returns the new job IDs.
func (p *Processor[I, O]) AddItems(items ...I) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, len(items))
	for i, item := range items {
		job := core.NewJob[I, O](uuid.New().String(), item)
		p.jobs = append(p.jobs, job)
		p.positions[job.ID] = p.nextPos
		p.nextPos++
		ids[i] = job.ID
	}
	return ids
}

// Start processes every pending job and blocks until the run ends.
// It returns core.ErrAlreadyRunning, without touching any job, if another
// Start is in flight. After Stop, jobs that never started stay pending.
func (p *Processor[I, O]) Start(ctx context.Context) (*core.Result[O], error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, core.ErrAlreadyRunning
	}
	// Clear a Stop left over from the previous run.
	if p.gate.State() == pool.Stopped {
		p.gate.Reset()
	}
	p.running = true
	var pending []*core.Job[I, O]
	positions := make(map[string]int64)
	for _, job := range p.jobs {
		if job.Status == core.StatusPending {
			pending = append(pending, job)
			positions[job.ID] = p.positions[job.ID]
		}
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	startedAt := time.Now()
	e := newExecution(p.opts, p.fn, pending, &p.mu)
	result, unstarted, err := e.run(ctx, p.gate)
	if err != nil {
		p.opts.Logger.Info("processor run ended early",
			"source", p.opts.Name, "unstarted", len(unstarted), "error", err)
	}

	p.persist(ctx, pending, positions, unstarted, result, startedAt)
	return result, nil
}

// Pause holds back jobs that have not started yet. Running jobs finish.
func (p *Processor[I, O]) Pause() {
	p.gate.Pause()
}

// Resume lets a paused processor start jobs again.
func (p *Processor[I, O]) Resume() {
	p.gate.Resume()
}

// Stop ends the current run after in-flight jobs finish.
// Jobs that have not started remain pending for the next Start.
func (p *Processor[I, O]) Stop() {
	p.gate.Stop()
}

// Status returns counts computed from the current job list.
func (p *Processor[I, O]) Status() ProcessorStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProcessorStatus{
		IsRunning: p.running,
		IsPaused:  p.gate.State() == pool.Paused,
		Counts:    core.CountJobs(p.jobs),
	}
}

// Jobs returns a copy of every job.
func (p *Processor[I, O]) Jobs() []core.Job[I, O] {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.Job[I, O], len(p.jobs))
	for i, job := range p.jobs {
		out[i] = *job
	}
	return out
}

// ClearCompleted removes completed jobs. Failed jobs are kept.
func (p *Processor[I, O]) ClearCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.jobs[:0]
	for _, job := range p.jobs {
		if job.Status == core.StatusCompleted {
			delete(p.positions, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	clear(p.jobs[len(kept):])
	p.jobs = kept
}

// Reset returns every job to pending and clears its output and error.
// Jobs that are processing right now are left alone.
func (p *Processor[I, O]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, job := range p.jobs {
		if job.Status == core.StatusProcessing {
			continue
		}
		job.Rewind()
	}
}

func (p *Processor[I, O]) persist(ctx context.Context, ran []*core.Job[I, O], positions map[string]int64, unstarted []*core.Job[I, O], result *core.Result[O], startedAt time.Time) {
	if p.opts.Store == nil {
		return
	}
	// Persist even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)

	p.mu.Lock()
	recs := make([]*core.Record, 0, len(ran))
	for _, job := range ran {
		rec, err := core.NewRecord(p.opts.Name, positions[job.ID], job)
		if err != nil {
			p.opts.Logger.Warn("failed to encode job record", "job_id", job.ID, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	p.mu.Unlock()

	if err := p.opts.Store.SaveJobs(ctx, recs); err != nil {
		p.opts.Logger.Warn("failed to save job records", "source", p.opts.Name, "error", err)
	}

	run := &core.RunRecord{
		ID:         uuid.New().String(),
		Source:     p.opts.Name,
		Total:      len(ran) - len(unstarted),
		Successful: len(result.Successful),
		Failed:     len(result.Failed),
		TotalTime:  result.TotalTime,
		StartedAt:  startedAt,
	}
	if err := p.opts.Store.SaveRun(ctx, run); err != nil {
		p.opts.Logger.Warn("failed to save run record", "source", p.opts.Name, "error", err)
	}
}
