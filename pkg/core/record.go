package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the persisted form of a Job. Input and Output are stored as JSON.
type Record struct {
	ID          string     `gorm:"primaryKey;size:36"`
	Source      string     `gorm:"index;size:255;not null"`
	Status      Status     `gorm:"index;size:20;default:'pending'"`
	Position    int64      `gorm:"index;default:0"` // order within the source
	Input       []byte     `gorm:"type:bytes"`
	Output      []byte     `gorm:"type:bytes"`
	Error       string     `gorm:"type:text"`
	Progress    float64    `gorm:"default:0"`
	Attempts    int        `gorm:"default:0"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName sets the table for job records.
func (Record) TableName() string { return "batch_jobs" }

// RunRecord summarises one Processor.Start call.
type RunRecord struct {
	ID         string        `gorm:"primaryKey;size:36"`
	Source     string        `gorm:"index;size:255;not null"`
	Total      int           `gorm:"default:0"`
	Successful int           `gorm:"default:0"`
	Failed     int           `gorm:"default:0"`
	TotalTime  time.Duration `gorm:"default:0"`
	StartedAt  time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName sets the table for run records.
func (RunRecord) TableName() string { return "batch_runs" }

// NewRecord converts a job into its persisted form.
func NewRecord[I, O any](source string, position int64, j *Job[I, O]) (*Record, error) {
	input, err := json.Marshal(j.Input)
	if err != nil {
		return nil, fmt.Errorf("batch: marshal input of %s: %w", j.ID, err)
	}
	rec := &Record{
		ID:          j.ID,
		Source:      source,
		Status:      j.Status,
		Position:    position,
		Input:       input,
		Error:       j.Error,
		Progress:    j.Progress,
		Attempts:    j.Attempts,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Status == StatusCompleted {
		out, err := json.Marshal(j.Output)
		if err != nil {
			return nil, fmt.Errorf("batch: marshal output of %s: %w", j.ID, err)
		}
		rec.Output = out
	}
	return rec, nil
}

// JobFromRecord rebuilds a job from its persisted form.
func JobFromRecord[I, O any](rec *Record) (*Job[I, O], error) {
	j := &Job[I, O]{
		ID:          rec.ID,
		Status:      rec.Status,
		Error:       rec.Error,
		Progress:    rec.Progress,
		Attempts:    rec.Attempts,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
	}
	if err := json.Unmarshal(rec.Input, &j.Input); err != nil {
		return nil, fmt.Errorf("batch: unmarshal input of %s: %w", rec.ID, err)
	}
	if len(rec.Output) > 0 {
		if err := json.Unmarshal(rec.Output, &j.Output); err != nil {
			return nil, fmt.Errorf("batch: unmarshal output of %s: %w", rec.ID, err)
		}
	}
	return j, nil
}
