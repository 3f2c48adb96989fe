package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/internal/handler"
	"github.com/jdziat/simple-batch-jobs/pkg/jobctx"
	"github.com/jdziat/simple-batch-jobs/pkg/pool"
	"github.com/jdziat/simple-batch-jobs/pkg/retry"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Func processes one queued item.
type Func[I, O any] func(ctx context.Context, item I) (O, error)

// update is one entry in the notification mailbox.
type update[I, O any] struct {
	jobs  []core.Job[I, O]
	recs  []*core.Record
	purge bool
}

// Queue runs added items with bounded concurrency. A free slot is handed to
// the next pending job as soon as a running job finishes.
type Queue[I, O any] struct {
	fn   Func[I, O]
	opts *Options
	gate *pool.Gate

	mu        sync.Mutex
	jobs      []*core.Job[I, O]
	positions map[string]int64
	nextPos   int64
	epoch     uint64
	changed   chan struct{}

	// Running job cancellation registry
	running map[string]context.CancelFunc

	// Update mailbox, drained in order by a single goroutine
	onUpdate   []func([]core.Job[I, O])
	mailbox    []update[I, O]
	delivering bool

	// Event stream
	subsMu    sync.RWMutex
	eventSubs []chan core.Event
}

// New creates a Queue. It panics if the configured name is invalid.
func New[I, O any](fn Func[I, O], opts ...Option) *Queue[I, O] {
	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}
	if err := security.ValidateName(options.Name); err != nil {
		panic(fmt.Sprintf("batch: invalid queue name %q: %v", options.Name, err))
	}

	return &Queue[I, O]{
		fn:        fn,
		opts:      options,
		gate:      pool.NewGate(),
		positions: make(map[string]int64),
		running:   make(map[string]context.CancelFunc),
		changed:   make(chan struct{}),
	}
}

// Name returns the queue name.
func (q *Queue[I, O]) Name() string {
	return q.opts.Name
}

// Add enqueues one pending job per item, starts as many as free slots allow,
// and returns the new job IDs.
func (q *Queue[I, O]) Add(items ...I) []string {
	if len(items) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, len(items))
	added := make([]*core.Job[I, O], len(items))
	for i, item := range items {
		job := core.NewJob[I, O](uuid.New().String(), item)
		q.jobs = append(q.jobs, job)
		q.positions[job.ID] = q.nextPos
		q.nextPos++
		ids[i] = job.ID
		added[i] = job
	}
	q.publishLocked(added...)
	q.dispatchLocked()
	return ids
}

// OnUpdate registers a handler that receives a snapshot of every job after
// each change. Snapshots arrive one at a time in the order the changes were
// made. Handlers may call back into the queue.
func (q *Queue[I, O]) OnUpdate(fn func(jobs []core.Job[I, O])) {
	q.mu.Lock()
	q.onUpdate = append(q.onUpdate, fn)
	q.mu.Unlock()
}

// All returns a copy of every job in insertion order.
func (q *Queue[I, O]) All() []core.Job[I, O] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Status returns counts computed from the current job list.
func (q *Queue[I, O]) Status() core.Counts {
	q.mu.Lock()
	defer q.mu.Unlock()
	return core.CountJobs(q.jobs)
}

// Clear drops every job. Running jobs have their context cancelled and
// their results are discarded when they return.
func (q *Queue[I, O]) Clear() {
	q.mu.Lock()
	dropped := len(q.jobs)
	for id, cancel := range q.running {
		cancel()
		delete(q.running, id)
	}
	q.epoch++
	clear(q.jobs)
	q.jobs = nil
	clear(q.positions)
	q.publishPurgeLocked()
	q.broadcastLocked()
	q.mu.Unlock()

	q.opts.Logger.Debug("queue cleared", "source", q.opts.Name, "dropped", dropped)
	q.Emit(&core.QueueCleared{Source: q.opts.Name, Dropped: dropped, Timestamp: time.Now()})
}

// Pause stops new jobs from starting. Running jobs finish normally.
func (q *Queue[I, O]) Pause() {
	if !q.gate.Pause() {
		return
	}
	q.opts.Logger.Debug("queue paused", "source", q.opts.Name)
	q.Emit(&core.QueuePaused{Source: q.opts.Name, Timestamp: time.Now()})
}

// Resume starts pending jobs again after Pause.
func (q *Queue[I, O]) Resume() {
	if !q.gate.Resume() {
		return
	}
	q.opts.Logger.Debug("queue resumed", "source", q.opts.Name)
	q.Emit(&core.QueueResumed{Source: q.opts.Name, Timestamp: time.Now()})

	q.mu.Lock()
	q.dispatchLocked()
	q.mu.Unlock()
}

// IsPaused reports whether the queue is paused.
func (q *Queue[I, O]) IsPaused() bool {
	return q.gate.State() == pool.Paused
}

// Wait blocks until no job is pending or processing and every update has
// been delivered. A paused queue with pending jobs waits until Resume or ctx ends.
func (q *Queue[I, O]) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		idle := q.idleLocked()
		ch := q.changed
		q.mu.Unlock()

		if idle {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Restore reloads pending and processing records of this queue from the
// store and queues them again as pending. It returns how many jobs were added.
func (q *Queue[I, O]) Restore(ctx context.Context) (int, error) {
	if q.opts.Store == nil {
		return 0, core.ErrNoStore
	}

	recs, err := q.opts.Store.ListJobs(ctx, q.opts.Name,
		[]core.Status{core.StatusPending, core.StatusProcessing}, 0)
	if err != nil {
		return 0, fmt.Errorf("batch: restore %s: %w", q.opts.Name, err)
	}

	jobs := make([]*core.Job[I, O], 0, len(recs))
	positions := make([]int64, 0, len(recs))
	for _, rec := range recs {
		job, err := core.JobFromRecord[I, O](rec)
		if err != nil {
			q.opts.Logger.Warn("skipping unreadable job record", "job_id", rec.ID, "error", err)
			continue
		}
		job.Rewind()
		jobs = append(jobs, job)
		positions = append(positions, rec.Position)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var restored []*core.Job[I, O]
	for i, job := range jobs {
		if _, ok := q.positions[job.ID]; ok {
			continue
		}
		q.jobs = append(q.jobs, job)
		q.positions[job.ID] = positions[i]
		if positions[i] >= q.nextPos {
			q.nextPos = positions[i] + 1
		}
		restored = append(restored, job)
	}
	if len(restored) > 0 {
		q.publishLocked(restored...)
		q.dispatchLocked()
	}

	q.opts.Logger.Info("queue restored", "source", q.opts.Name, "jobs", len(restored))
	return len(restored), nil
}

// Events returns a channel for receiving queue events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (q *Queue[I, O]) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	q.subsMu.Lock()
	q.eventSubs = append(q.eventSubs, ch)
	q.subsMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed. After Unsubscribe returns, no further events
// are sent to it.
func (q *Queue[I, O]) Unsubscribe(ch <-chan core.Event) {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()
	for i, sub := range q.eventSubs {
		if sub == ch {
			q.eventSubs = append(q.eventSubs[:i], q.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit sends an event to all subscribers, dropping it for subscribers that are full.
func (q *Queue[I, O]) Emit(e core.Event) {
	q.subsMu.RLock()
	subs := make([]chan core.Event, len(q.eventSubs))
	copy(subs, q.eventSubs)
	q.subsMu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// dispatchLocked starts pending jobs while a slot is free and the gate is open.
func (q *Queue[I, O]) dispatchLocked() {
	for len(q.running) < q.opts.Concurrency && q.gate.State() == pool.Running {
		job := q.nextPendingLocked()
		if job == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		q.running[job.ID] = cancel
		job.Begin(time.Now())
		q.publishLocked(job)

		go q.process(ctx, job, q.epoch)
	}
}

func (q *Queue[I, O]) nextPendingLocked() *core.Job[I, O] {
	for _, job := range q.jobs {
		if job.Status == core.StatusPending {
			return job
		}
	}
	return nil
}

func (q *Queue[I, O]) process(ctx context.Context, job *core.Job[I, O], epoch uint64) {
	log := q.opts.Logger.With("job_id", job.ID, "source", q.opts.Name)
	start := time.Now()

	var out O
	err := retry.Do(ctx, q.opts.Retry, func(ctx context.Context, attempt int) error {
		if attempt > 1 && !q.beginRetry(job, epoch) {
			return core.NoRetry(context.Canceled)
		}
		log.Debug("job attempt started", "attempt", attempt)
		q.Emit(&core.JobStarted{Source: q.opts.Name, JobID: job.ID, Attempt: attempt, Timestamp: time.Now()})

		actx := jobctx.WithJob(ctx, job.ID, attempt, func(pct float64) {
			q.setProgress(job, epoch, pct)
		})

		var attemptErr error
		out, attemptErr = handler.Execute(actx, q.opts.JobTimeout, func(ctx context.Context) (O, error) {
			return q.fn(ctx, job.Input)
		})
		return attemptErr
	}, func(attempt int, err error, wait time.Duration) {
		log.Warn("job attempt failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		q.Emit(&core.JobRetrying{
			Source:        q.opts.Name,
			JobID:         job.ID,
			Attempt:       attempt,
			Error:         err,
			NextAttemptAt: time.Now().Add(wait),
			Timestamp:     time.Now(),
		})
	})

	q.finish(job, epoch, out, err, time.Since(start))
}

// beginRetry records the start of a further attempt. It returns false if
// the job was cleared in the meantime.
func (q *Queue[I, O]) beginRetry(job *core.Job[I, O], epoch uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.epoch != epoch {
		return false
	}
	job.Begin(time.Now())
	q.publishLocked(job)
	return true
}

func (q *Queue[I, O]) setProgress(job *core.Job[I, O], epoch uint64, pct float64) {
	q.mu.Lock()
	if q.epoch != epoch || job.Status != core.StatusProcessing {
		q.mu.Unlock()
		return
	}
	job.Progress = pct
	q.publishLocked(job)
	q.mu.Unlock()

	q.Emit(&core.JobProgressed{Source: q.opts.Name, JobID: job.ID, Progress: pct, Timestamp: time.Now()})
}

func (q *Queue[I, O]) finish(job *core.Job[I, O], epoch uint64, out O, err error, elapsed time.Duration) {
	log := q.opts.Logger.With("job_id", job.ID, "source", q.opts.Name)

	q.mu.Lock()
	if q.epoch != epoch {
		q.mu.Unlock()
		log.Debug("discarding result of cleared job")
		return
	}
	if cancel, ok := q.running[job.ID]; ok {
		cancel()
		delete(q.running, job.ID)
	}

	now := time.Now()
	if err == nil {
		job.Complete(out, now)
	} else {
		job.Fail(security.SanitizeErrorMessage(core.ErrorMessage(err)), now)
	}
	q.publishLocked(job)
	q.dispatchLocked()
	q.broadcastLocked()
	q.mu.Unlock()

	if err == nil {
		log.Debug("job completed", "duration", elapsed)
		q.Emit(&core.JobCompleted{Source: q.opts.Name, JobID: job.ID, Duration: elapsed, Timestamp: now})
		return
	}
	log.Warn("job failed", "error", err)
	q.Emit(&core.JobFailed{Source: q.opts.Name, JobID: job.ID, Error: err, Timestamp: now})
}

func (q *Queue[I, O]) snapshotLocked() []core.Job[I, O] {
	out := make([]core.Job[I, O], len(q.jobs))
	for i, job := range q.jobs {
		out[i] = *job
	}
	return out
}

// publishLocked queues a snapshot for OnUpdate handlers and the records of
// the changed jobs for the store.
func (q *Queue[I, O]) publishLocked(changed ...*core.Job[I, O]) {
	if len(q.onUpdate) == 0 && q.opts.Store == nil {
		return
	}

	var u update[I, O]
	if len(q.onUpdate) > 0 {
		u.jobs = q.snapshotLocked()
	}
	if q.opts.Store != nil {
		for _, job := range changed {
			rec, err := core.NewRecord(q.opts.Name, q.positions[job.ID], job)
			if err != nil {
				q.opts.Logger.Warn("failed to encode job record", "job_id", job.ID, "error", err)
				continue
			}
			u.recs = append(u.recs, rec)
		}
	}
	q.enqueueLocked(u)
}

func (q *Queue[I, O]) publishPurgeLocked() {
	if len(q.onUpdate) == 0 && q.opts.Store == nil {
		return
	}
	u := update[I, O]{purge: q.opts.Store != nil}
	if len(q.onUpdate) > 0 {
		u.jobs = []core.Job[I, O]{}
	}
	q.enqueueLocked(u)
}

func (q *Queue[I, O]) enqueueLocked(u update[I, O]) {
	q.mailbox = append(q.mailbox, u)
	if !q.delivering {
		q.delivering = true
		go q.deliver()
	}
}

// deliver drains the mailbox. It exits once the mailbox is empty and is
// restarted by the next publish.
func (q *Queue[I, O]) deliver() {
	for {
		q.mu.Lock()
		if len(q.mailbox) == 0 {
			q.delivering = false
			q.mailbox = nil
			q.broadcastLocked()
			q.mu.Unlock()
			return
		}
		u := q.mailbox[0]
		q.mailbox[0] = update[I, O]{}
		q.mailbox = q.mailbox[1:]
		handlers := slices.Clone(q.onUpdate)
		q.mu.Unlock()

		q.persist(u)
		if u.jobs != nil {
			for _, fn := range handlers {
				q.callUpdate(fn, u.jobs)
			}
		}
	}
}

func (q *Queue[I, O]) callUpdate(fn func([]core.Job[I, O]), jobs []core.Job[I, O]) {
	defer func() {
		if r := recover(); r != nil {
			q.opts.Logger.Error("update handler panicked", "source", q.opts.Name, "panic", r)
		}
	}()
	fn(jobs)
}

func (q *Queue[I, O]) persist(u update[I, O]) {
	if q.opts.Store == nil {
		return
	}
	ctx := context.Background()
	if u.purge {
		if _, err := q.opts.Store.DeleteJobs(ctx, q.opts.Name, nil); err != nil {
			q.opts.Logger.Warn("failed to delete job records", "source", q.opts.Name, "error", err)
		}
	}
	if len(u.recs) > 0 {
		if err := q.opts.Store.SaveJobs(ctx, u.recs); err != nil {
			q.opts.Logger.Warn("failed to save job records", "source", q.opts.Name, "error", err)
		}
	}
}

func (q *Queue[I, O]) idleLocked() bool {
	if len(q.running) > 0 || q.delivering || len(q.mailbox) > 0 {
		return false
	}
	return q.nextPendingLocked() == nil
}

// broadcastLocked wakes every Wait call.
func (q *Queue[I, O]) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}
