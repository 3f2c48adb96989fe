package handler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_ReturnsOutput(t *testing.T) {
	out, err := Execute(context.Background(), 0, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestExecute_ReturnsError(t *testing.T) {
	boom := errors.New("boom")

	_, err := Execute(context.Background(), 0, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	assert.Equal(t, boom, err)
}

func TestExecute_RecoversPanic(t *testing.T) {
	out, err := Execute(context.Background(), 0, func(ctx context.Context) (int, error) {
		panic("kaboom")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: kaboom")
	assert.Zero(t, out)
}

func TestExecute_NilFunc(t *testing.T) {
	_, err := Execute[int](context.Background(), 0, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestExecute_TimeoutFailsProcessorIgnoringContext(t *testing.T) {
	out, err := Execute(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(60 * time.Millisecond) // ignores ctx
		return 1, nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, out)
}

func TestExecute_WaitsForProcessorToReturn(t *testing.T) {
	var live atomic.Int32

	_, err := Execute(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		live.Add(1)
		defer live.Add(-1)
		time.Sleep(50 * time.Millisecond)
		return 1, nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, live.Load(), "invocation still running after Execute returned")
}

func TestExecute_KeepsProcessorErrorAfterTimeout(t *testing.T) {
	boom := errors.New("upstream 500")

	_, err := Execute(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(30 * time.Millisecond)
		return 0, boom
	})

	assert.Equal(t, boom, err)
}

func TestExecute_TimeoutVisibleToProcessor(t *testing.T) {
	_, err := Execute(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Execute(ctx, 0, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
}
