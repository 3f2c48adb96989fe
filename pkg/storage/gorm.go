package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// Columns overwritten when a job record is saved again.
var jobUpdateColumns = []string{
	"source", "status", "position", "input", "output", "error",
	"progress", "attempts", "started_at", "completed_at", "updated_at",
}

// GormStore implements core.Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the necessary tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Record{}, &core.RunRecord{})
}

// Close closes the underlying database connections.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveJobs inserts records or overwrites the existing ones with the same ID.
func (s *GormStore) SaveJobs(ctx context.Context, recs []*core.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(jobUpdateColumns),
		}).
		Create(&recs).Error
}

// GetJob retrieves a job record by ID. It returns nil, nil if none exists.
func (s *GormStore) GetJob(ctx context.Context, id string) (*core.Record, error) {
	var rec core.Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListJobs returns records ordered by source and position.
// An empty source matches every source.
func (s *GormStore) ListJobs(ctx context.Context, source string, statuses []core.Status, limit int) ([]*core.Record, error) {
	q := s.db.WithContext(ctx).Model(&core.Record{})
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []*core.Record
	err := q.Order("source ASC, position ASC").Find(&recs).Error
	return recs, err
}

// DeleteJobs removes records of a source, optionally only those in statuses.
func (s *GormStore) DeleteJobs(ctx context.Context, source string, statuses []core.Status) (int64, error) {
	q := s.db.WithContext(ctx).Where("source = ?", source)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	result := q.Delete(&core.Record{})
	return result.RowsAffected, result.Error
}

// SaveRun stores a run summary, assigning an ID if it has none.
func (s *GormStore) SaveRun(ctx context.Context, run *core.RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(run).Error
}

// ListRuns returns the most recent runs first. An empty source matches every source.
func (s *GormStore) ListRuns(ctx context.Context, source string, limit int) ([]*core.RunRecord, error) {
	q := s.db.WithContext(ctx).Model(&core.RunRecord{})
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var runs []*core.RunRecord
	err := q.Order("started_at DESC").Find(&runs).Error
	return runs, err
}

// CountByStatus returns job counts of a source grouped by status.
func (s *GormStore) CountByStatus(ctx context.Context, source string) (core.Counts, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.Record{}).
		Select("status, count(*) as count").
		Where("source = ?", source).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return core.Counts{}, err
	}

	var c core.Counts
	for _, r := range rows {
		n := int(r.Count)
		switch core.Status(r.Status) {
		case core.StatusPending:
			c.Pending += n
		case core.StatusProcessing:
			c.Processing += n
		case core.StatusCompleted:
			c.Completed += n
		case core.StatusFailed:
			c.Failed += n
		}
		c.Total += n
	}
	return c, nil
}
