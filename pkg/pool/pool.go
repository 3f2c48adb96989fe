package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jdziat/simple-batch-jobs/pkg/security"
)

// Refill decides when a finished task's slot is handed to the next task.
type Refill int

const (
	// Immediate starts the next task as soon as any slot frees up.
	Immediate Refill = iota
	// Barrier runs tasks in chunks of Size and waits for the whole chunk
	// to finish before starting the next one.
	Barrier
)

func (r Refill) String() string {
	if r == Barrier {
		return "barrier"
	}
	return "immediate"
}

// Task runs the work for one index.
type Task func(ctx context.Context, index int)

// Pool runs indexed tasks with bounded concurrency.
type Pool struct {
	size   int
	refill Refill
	gate   *Gate
}

// New creates a pool. size is clamped to [1, security.MaxConcurrency].
// A nil gate never pauses.
func New(size int, refill Refill, gate *Gate) *Pool {
	return &Pool{
		size:   security.ClampConcurrency(size),
		refill: refill,
		gate:   gate,
	}
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Run starts tasks 0..n-1 in index order and waits for every started task.
// It stops starting tasks when the gate is stopped or ctx is done, and
// returns how many tasks were started together with the reason it stopped early.
func (p *Pool) Run(ctx context.Context, n int, task Task) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	if p.refill == Barrier {
		return p.runBarrier(ctx, n, task)
	}
	return p.runImmediate(ctx, n, task)
}

func (p *Pool) runBarrier(ctx context.Context, n int, task Task) (int, error) {
	started := 0
	for start := 0; start < n; start += p.size {
		if err := p.admit(ctx); err != nil {
			return started, err
		}

		end := min(start+p.size, n)
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				task(ctx, i)
				return nil
			})
		}
		started += end - start
		_ = g.Wait()
	}
	return started, nil
}

func (p *Pool) runImmediate(ctx context.Context, n int, task Task) (int, error) {
	sem := semaphore.NewWeighted(int64(p.size))
	var wg sync.WaitGroup

	for i := 0; i < n; {
		if err := p.admit(ctx); err != nil {
			wg.Wait()
			return i, err
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return i, err
		}
		// The gate may have closed while waiting for a slot.
		if p.gate != nil && p.gate.State() != Running {
			sem.Release(1)
			continue
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			defer sem.Release(1)
			task(ctx, index)
		}(i)
		i++
	}

	wg.Wait()
	return n, nil
}

func (p *Pool) admit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.gate == nil {
		return nil
	}
	return p.gate.Wait(ctx)
}
