package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()

	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 1*time.Minute, cfg.ConnMaxIdleTime)
}

func TestSQLitePoolConfig(t *testing.T) {
	cfg := SQLitePoolConfig()

	assert.Equal(t, 1, cfg.MaxOpenConns)
	assert.Equal(t, 1, cfg.MaxIdleConns)
	assert.Zero(t, cfg.ConnMaxLifetime)
	assert.Zero(t, cfg.ConnMaxIdleTime)
}

func TestPoolOptions(t *testing.T) {
	cfg := PoolConfig{}

	MaxOpenConns(50).applyPool(&cfg)
	assert.Equal(t, 50, cfg.MaxOpenConns)

	MaxIdleConns(20).applyPool(&cfg)
	assert.Equal(t, 20, cfg.MaxIdleConns)

	ConnMaxLifetime(10 * time.Minute).applyPool(&cfg)
	assert.Equal(t, 10*time.Minute, cfg.ConnMaxLifetime)

	ConnMaxIdleTime(2 * time.Minute).applyPool(&cfg)
	assert.Equal(t, 2*time.Minute, cfg.ConnMaxIdleTime)
}

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = ConfigurePool(db,
		MaxOpenConns(30),
		MaxIdleConns(15),
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 30, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "batch.db")

	s, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)

	rec := newTestRecord(t, "renders", 0, "a", core.StatusPending)
	require.NoError(t, s.SaveJobs(ctx, []*core.Record{rec}))
	require.NoError(t, s.Close())

	// Records survive reopening the file.
	s, err = Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetJob(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.StatusPending, got.Status)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, ":memory:", MaxIdleConns(1))
	require.NoError(t, err)
	defer s.Close()

	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, s.SaveRun(ctx, &core.RunRecord{Source: "renders", StartedAt: time.Now()}))
	runs, err := s.ListRuns(ctx, "renders", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
