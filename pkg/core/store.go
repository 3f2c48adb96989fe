package core

import "context"

// Store defines the persistence layer for job and run records.
// Persistence is optional; queues and processors run purely in memory without one.
type Store interface {
	// SaveJobs upserts job records by ID.
	SaveJobs(ctx context.Context, recs []*Record) error

	// ListJobs returns records of a source ordered by position.
	// An empty statuses slice matches every status; limit <= 0 means no limit.
	ListJobs(ctx context.Context, source string, statuses []Status, limit int) ([]*Record, error)

	// DeleteJobs removes records of a source. An empty statuses slice removes all of them.
	DeleteJobs(ctx context.Context, source string, statuses []Status) (int64, error)

	// SaveRun stores a run summary.
	SaveRun(ctx context.Context, run *RunRecord) error
}
