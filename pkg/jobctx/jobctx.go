// Package jobctx provides public access to job context for processors.
package jobctx

import (
	"context"
	"math"
)

type jobContextKey struct{}

type jobContext struct {
	jobID    string
	attempt  int
	progress func(pct float64)
}

// WithJob returns a context carrying the job identity and a progress sink.
// The batch and queue packages call this before every attempt.
func WithJob(ctx context.Context, jobID string, attempt int, progress func(pct float64)) context.Context {
	return context.WithValue(ctx, jobContextKey{}, &jobContext{
		jobID:    jobID,
		attempt:  attempt,
		progress: progress,
	})
}

func fromContext(ctx context.Context) *jobContext {
	jc, _ := ctx.Value(jobContextKey{}).(*jobContext)
	return jc
}

// JobID returns the current job ID from context, or empty string if not in a processor.
func JobID(ctx context.Context) string {
	jc := fromContext(ctx)
	if jc == nil {
		return ""
	}
	return jc.jobID
}

// Attempt returns the 1-indexed attempt number, or 0 if not in a processor.
func Attempt(ctx context.Context) int {
	jc := fromContext(ctx)
	if jc == nil {
		return 0
	}
	return jc.attempt
}

// ReportProgress records progress (0-100) on the current job.
// Values are clamped. Returns false when called outside a processor.
func ReportProgress(ctx context.Context, pct float64) bool {
	jc := fromContext(ctx)
	if jc == nil || jc.progress == nil || math.IsNaN(pct) {
		return false
	}
	jc.progress(math.Max(0, math.Min(100, pct)))
	return true
}
