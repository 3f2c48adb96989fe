package handler

import (
	"context"
	"fmt"
	"time"
)

// Func is one processor invocation.
type Func[O any] func(ctx context.Context) (O, error)

// Execute runs fn under ctx, bounded by timeout when timeout > 0.
//
// Execute always waits for fn to return, so a caller holding a concurrency
// slot keeps it for as long as the invocation is alive. If ctx ended before
// fn returned, the attempt fails with the context error and fn's result is
// discarded, even when fn ignored ctx.
func Execute[O any](ctx context.Context, timeout time.Duration, fn Func[O]) (out O, err error) {
	var zero O
	if fn == nil {
		return zero, fmt.Errorf("processor function is nil")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = zero, fmt.Errorf("panic: %v", r)
		}
	}()

	out, err = fn(ctx)
	if err == nil && ctx.Err() != nil {
		return zero, ctx.Err()
	}
	return out, err
}
