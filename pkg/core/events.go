package core

import "time"

// Event is the interface for all queue events.
type Event interface {
	eventMarker()
}

// JobStarted is emitted when a job attempt starts processing.
type JobStarted struct {
	Source    string
	JobID     string
	Attempt   int
	Timestamp time.Time
}

func (*JobStarted) eventMarker() {}

// JobRetrying is emitted when a failed attempt will be retried.
type JobRetrying struct {
	Source        string
	JobID         string
	Attempt       int
	Error         error
	NextAttemptAt time.Time
	Timestamp     time.Time
}

func (*JobRetrying) eventMarker() {}

// JobProgressed is emitted when a processor reports progress.
type JobProgressed struct {
	Source    string
	JobID     string
	Progress  float64
	Timestamp time.Time
}

func (*JobProgressed) eventMarker() {}

// JobCompleted is emitted when a job completes successfully.
type JobCompleted struct {
	Source    string
	JobID     string
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobCompleted) eventMarker() {}

// JobFailed is emitted when a job fails permanently.
type JobFailed struct {
	Source    string
	JobID     string
	Error     error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// QueueCleared is emitted when a queue drops all of its jobs.
type QueueCleared struct {
	Source    string
	Dropped   int
	Timestamp time.Time
}

func (*QueueCleared) eventMarker() {}

// QueuePaused is emitted when a queue stops starting new jobs.
type QueuePaused struct {
	Source    string
	Timestamp time.Time
}

func (*QueuePaused) eventMarker() {}

// QueueResumed is emitted when a paused queue resumes.
type QueueResumed struct {
	Source    string
	Timestamp time.Time
}

func (*QueueResumed) eventMarker() {}
