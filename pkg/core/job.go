// Package core provides the domain models and interfaces for the batch packages.
package core

import (
	"time"
)

// Status represents the current state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents one unit of work submitted for processing.
//
// Output is meaningful only when Status is StatusCompleted and Error only
// when Status is StatusFailed.
type Job[I, O any] struct {
	ID          string
	Status      Status
	Input       I
	Output      O
	Error       string
	Progress    float64 // 0-100, updated by the processor
	Attempts    int
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewJob creates a pending job for the given input.
func NewJob[I, O any](id string, input I) *Job[I, O] {
	return &Job[I, O]{
		ID:     id,
		Status: StatusPending,
		Input:  input,
	}
}

// Begin moves the job into processing for a new attempt.
// StartedAt is only set on the first attempt.
func (j *Job[I, O]) Begin(now time.Time) {
	j.Status = StatusProcessing
	j.Attempts++
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
}

// Complete records a successful outcome.
func (j *Job[I, O]) Complete(out O, now time.Time) {
	j.Status = StatusCompleted
	j.Output = out
	j.Error = ""
	j.Progress = 100
	j.CompletedAt = &now
}

// Fail records a terminal failure.
func (j *Job[I, O]) Fail(msg string, now time.Time) {
	var zero O
	j.Status = StatusFailed
	j.Output = zero
	j.Error = msg
	j.CompletedAt = &now
}

// Rewind returns the job to pending and clears every outcome field.
func (j *Job[I, O]) Rewind() {
	var zero O
	j.Status = StatusPending
	j.Output = zero
	j.Error = ""
	j.Progress = 0
	j.Attempts = 0
	j.StartedAt = nil
	j.CompletedAt = nil
}

// Counts holds the number of jobs per status.
type Counts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// CountJobs tallies jobs by status.
func CountJobs[I, O any](jobs []*Job[I, O]) Counts {
	c := Counts{Total: len(jobs)}
	for _, j := range jobs {
		switch j.Status {
		case StatusPending:
			c.Pending++
		case StatusProcessing:
			c.Processing++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Failure describes a job that ended in StatusFailed.
type Failure struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// Result is the aggregate outcome of a batch run.
// Successful is in completion order, not input order.
type Result[O any] struct {
	Successful []O
	Failed     []Failure
	TotalTime  time.Duration
}
