package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/jobctx"
	"github.com/jdziat/simple-batch-jobs/pkg/pool"
	"github.com/jdziat/simple-batch-jobs/pkg/retry"
)

func TestNewOptions_Defaults(t *testing.T) {
	o := NewOptions()

	assert.Equal(t, 3, o.Concurrency)
	assert.Equal(t, 2, o.Retry.Attempts())
	assert.Equal(t, retry.BackoffLinear, o.Retry.Backoff)
	assert.Equal(t, time.Second, o.Retry.Delay)
	assert.Equal(t, pool.Barrier, o.Refill)
	assert.Equal(t, "default", o.Name)
	assert.NotNil(t, o.Logger)
}

func TestOptions_Apply(t *testing.T) {
	o := NewOptions()
	for _, opt := range []Option{
		Concurrency(0),
		Retries(4),
		RetryDelay(5 * time.Millisecond),
		WithRefill(pool.Immediate),
		JobTimeout(time.Minute),
		Name("renders"),
		WithLogger(nil),
	} {
		opt.Apply(o)
	}

	assert.Equal(t, 1, o.Concurrency)
	assert.Equal(t, 5, o.Retry.Attempts())
	assert.Equal(t, 5*time.Millisecond, o.Retry.Delay)
	assert.Equal(t, pool.Immediate, o.Refill)
	assert.Equal(t, time.Minute, o.JobTimeout)
	assert.Equal(t, "renders", o.Name)
	assert.NotNil(t, o.Logger)
}

func TestProcessBatch_Example(t *testing.T) {
	result := ProcessBatch(context.Background(), []int{1, 2, 3}, func(ctx context.Context, x int, index int) (int, error) {
		if x == 2 {
			return 0, errors.New("boom")
		}
		return x * 10, nil
	}, Concurrency(2), Retries(0))

	assert.ElementsMatch(t, []int{10, 30}, result.Successful)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, core.Failure{JobID: "job_1", Error: "boom"}, result.Failed[0])
}

func TestProcessBatch_Empty(t *testing.T) {
	called := false
	mark := func() { called = true }

	result := ProcessBatch(context.Background(), []string{}, func(ctx context.Context, s string, i int) (string, error) {
		mark()
		return s, nil
	},
		OnJobStart(func(string) { mark() }),
		OnJobComplete(func(string, any) { mark() }),
		OnJobError(func(string, error) { mark() }),
		OnProgress(func(int, int, string) { mark() }),
	)

	assert.Empty(t, result.Successful)
	assert.NotNil(t, result.Successful)
	assert.Empty(t, result.Failed)
	assert.NotNil(t, result.Failed)
	assert.Less(t, result.TotalTime, 10*time.Millisecond)
	assert.False(t, called)
}

func TestProcessBatch_ConcurrencyBound(t *testing.T) {
	for _, refill := range []pool.Refill{pool.Barrier, pool.Immediate} {
		t.Run(refill.String(), func(t *testing.T) {
			var active, peak atomic.Int32
			items := make([]int, 20)

			result := ProcessBatch(context.Background(), items, func(ctx context.Context, _ int, i int) (int, error) {
				n := active.Add(1)
				defer active.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Duration(2+i%4*3) * time.Millisecond)
				return i, nil
			}, Concurrency(4), WithRefill(refill))

			assert.Len(t, result.Successful, 20)
			assert.LessOrEqual(t, peak.Load(), int32(4))
		})
	}
}

func TestProcessBatch_Completeness(t *testing.T) {
	for _, n := range []int{1, 2, 7, 25} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			items := make([]int, n)
			for i := range items {
				items[i] = i
			}

			result := ProcessBatch(context.Background(), items, func(ctx context.Context, x int, _ int) (int, error) {
				if x%3 == 0 {
					return 0, fmt.Errorf("item %d rejected", x)
				}
				return x, nil
			}, Concurrency(3), Retries(0))

			assert.Equal(t, n, len(result.Successful)+len(result.Failed))
		})
	}
}

func TestProcessBatch_RetryAccounting(t *testing.T) {
	const failures = 2

	run := func(retries int) (completed, failed []string) {
		var calls atomic.Int32
		ProcessBatch(context.Background(), []string{"only"}, func(ctx context.Context, s string, _ int) (string, error) {
			if calls.Add(1) <= failures {
				return "", errors.New("transient")
			}
			return s, nil
		},
			Retries(retries),
			RetryDelay(time.Millisecond),
			OnJobComplete(func(id string, _ any) { completed = append(completed, id) }),
			OnJobError(func(id string, _ error) { failed = append(failed, id) }),
		)
		return completed, failed
	}

	completed, failed := run(failures)
	assert.Equal(t, []string{"job_0"}, completed)
	assert.Empty(t, failed)

	completed, failed = run(failures - 1)
	assert.Empty(t, completed)
	assert.Equal(t, []string{"job_0"}, failed)
}

func TestProcessBatch_LinearBackoff(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time

	start := time.Now()
	result := ProcessBatch(context.Background(), []int{1}, func(ctx context.Context, x int, _ int) (int, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return 0, errors.New("always")
	}, Retries(2), RetryDelay(20*time.Millisecond))

	require.Len(t, result.Failed, 1)
	require.Len(t, stamps, 3)
	// Waits are 1x then 2x the delay.
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 40*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestProcessBatch_ProgressMonotonic(t *testing.T) {
	var seen []int
	var totals []int
	items := make([]int, 9)

	ProcessBatch(context.Background(), items, func(ctx context.Context, _ int, i int) (int, error) {
		time.Sleep(time.Duration(9-i) * time.Millisecond)
		if i == 4 {
			return 0, errors.New("nope")
		}
		return i, nil
	}, Concurrency(3), Retries(0), WithRefill(pool.Immediate), OnProgress(func(completed, total int, jobID string) {
		seen = append(seen, completed)
		totals = append(totals, total)
	}))

	require.Len(t, seen, 9)
	for i, c := range seen {
		assert.Equal(t, i+1, c)
		assert.Equal(t, 9, totals[i])
	}
}

func TestProcessBatch_CallbacksAreSerialised(t *testing.T) {
	var inCallback atomic.Int32
	var overlap atomic.Bool
	enter := func() {
		if inCallback.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(time.Millisecond)
		inCallback.Add(-1)
	}

	ProcessBatch(context.Background(), make([]int, 12), func(ctx context.Context, _ int, i int) (int, error) {
		return i, nil
	}, Concurrency(6), WithRefill(pool.Immediate),
		OnJobStart(func(string) { enter() }),
		OnJobComplete(func(string, any) { enter() }),
		OnProgress(func(int, int, string) { enter() }),
	)

	assert.False(t, overlap.Load())
}

func TestProcessBatch_StartFiresBeforeFirstAttemptOnly(t *testing.T) {
	var events []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	}

	var calls atomic.Int32
	ProcessBatch(context.Background(), []int{1}, func(ctx context.Context, x int, _ int) (int, error) {
		record("attempt")
		if calls.Add(1) == 1 {
			return 0, errors.New("first try fails")
		}
		return x, nil
	}, RetryDelay(time.Millisecond),
		OnJobStart(func(string) { record("start") }),
		OnJobRetry(func(string, int, error) { record("retry") }),
		OnJobComplete(func(string, any) { record("complete") }),
	)

	assert.Equal(t, []string{"start", "attempt", "retry", "attempt", "complete"}, events)
}

func TestProcessBatch_UnknownErrorMessage(t *testing.T) {
	result := ProcessBatch(context.Background(), []int{1}, func(ctx context.Context, x int, _ int) (int, error) {
		return 0, errors.New("")
	}, Retries(0))

	require.Len(t, result.Failed, 1)
	assert.Equal(t, core.UnknownError, result.Failed[0].Error)
}

func TestProcessBatch_PanicBecomesFailure(t *testing.T) {
	result := ProcessBatch(context.Background(), []int{1, 2}, func(ctx context.Context, x int, _ int) (int, error) {
		if x == 1 {
			panic("bad frame")
		}
		return x, nil
	}, Retries(0))

	assert.Equal(t, []int{2}, result.Successful)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Error, "panic: bad frame")
}

func TestProcessBatch_NoRetryStopsEarly(t *testing.T) {
	var calls atomic.Int32

	result := ProcessBatch(context.Background(), []int{1}, func(ctx context.Context, x int, _ int) (int, error) {
		calls.Add(1)
		return 0, core.NoRetry(errors.New("invalid prompt"))
	}, Retries(5), RetryDelay(time.Millisecond))

	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "invalid prompt", result.Failed[0].Error)
}

func TestProcessBatch_JobTimeout(t *testing.T) {
	result := ProcessBatch(context.Background(), []int{1, 2}, func(ctx context.Context, x int, _ int) (int, error) {
		if x == 1 {
			time.Sleep(80 * time.Millisecond) // ignores ctx
		}
		return x, nil
	}, Retries(0), JobTimeout(20*time.Millisecond))

	assert.Equal(t, []int{2}, result.Successful)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "job_0", result.Failed[0].JobID)
	assert.Contains(t, result.Failed[0].Error, "deadline exceeded")
}

func TestProcessBatch_JobTimeoutKeepsConcurrencyBound(t *testing.T) {
	for _, refill := range []pool.Refill{pool.Immediate, pool.Barrier} {
		t.Run(refill.String(), func(t *testing.T) {
			var live, peak, calls atomic.Int32

			result := ProcessBatch(context.Background(), []int{1, 2, 3, 4}, func(ctx context.Context, x int, _ int) (int, error) {
				calls.Add(1)
				n := live.Add(1)
				defer live.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(60 * time.Millisecond) // ignores ctx
				return x, nil
			},
				Concurrency(2),
				Retries(2),
				RetryDelay(0),
				JobTimeout(15*time.Millisecond),
				WithRefill(refill),
			)

			assert.LessOrEqual(t, peak.Load(), int32(2))
			assert.Zero(t, live.Load(), "invocations still running after ProcessBatch returned")
			assert.Equal(t, int32(12), calls.Load())
			assert.Empty(t, result.Successful)
			assert.Len(t, result.Failed, 4)
		})
	}
}

func TestProcessBatch_CancelDuringBackoffKeepsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := ProcessBatch(ctx, []int{1}, func(ctx context.Context, x int, _ int) (int, error) {
		return 0, errors.New("quota exceeded")
	}, Retries(3), RetryDelay(time.Hour), OnJobRetry(func(jobID string, attempt int, err error) {
		cancel()
	}))

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "quota exceeded", result.Failed[0].Error)
}

func TestProcessBatch_CancelReportsUnstarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var started atomic.Int32
	var callbacks atomic.Int32

	result := ProcessBatch(ctx, make([]int, 6), func(ctx context.Context, _ int, i int) (int, error) {
		started.Add(1)
		return i, nil
	}, Concurrency(2), Retries(0), OnProgress(func(completed, total int, jobID string) {
		callbacks.Add(1)
		if completed == 2 {
			cancel()
		}
	}))

	assert.Equal(t, int32(2), started.Load())
	assert.Equal(t, int32(2), callbacks.Load())
	assert.Len(t, result.Successful, 2)
	require.Len(t, result.Failed, 4)
	for _, f := range result.Failed {
		assert.Equal(t, context.Canceled.Error(), f.Error)
	}
}

func TestProcessBatch_ReportsProgressThroughContext(t *testing.T) {
	var ids []string
	var mu sync.Mutex

	ProcessBatch(context.Background(), []int{0, 1}, func(ctx context.Context, x int, _ int) (int, error) {
		mu.Lock()
		ids = append(ids, jobctx.JobID(ctx))
		mu.Unlock()
		assert.True(t, jobctx.ReportProgress(ctx, 50))
		assert.Equal(t, 1, jobctx.Attempt(ctx))
		return x, nil
	}, Retries(0))

	assert.ElementsMatch(t, []string{"job_0", "job_1"}, ids)
}
