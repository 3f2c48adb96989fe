package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers for Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("batch: unknown store driver")

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections in the idle pool.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	// Zero means no limit.
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	// Zero means no limit.
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the pool settings used for PostgreSQL.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// SQLitePoolConfig returns the pool settings used for SQLite.
// A single connection that never expires keeps an in-memory database alive
// and serialises writes.
func SQLitePoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

// PoolOption configures connection pool settings.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// MaxOpenConns sets the maximum number of open connections.
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = n
	})
}

// MaxIdleConns sets the maximum number of idle connections.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxIdleConns = n
	})
}

// ConnMaxLifetime sets the maximum connection lifetime.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxLifetime = d
	})
}

// ConnMaxIdleTime sets the maximum idle time for connections.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxIdleTime = d
	})
}

// ConfigurePool applies DefaultPoolConfig, overridden by opts, to db.
func ConfigurePool(db *gorm.DB, opts ...PoolOption) error {
	return configurePool(db, DefaultPoolConfig(), opts...)
}

func configurePool(db *gorm.DB, config PoolConfig, opts ...PoolOption) error {
	for _, opt := range opts {
		opt.applyPool(&config)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return nil
}

// Open connects to a database, configures its pool, and migrates the schema.
//
// driver is DriverSQLite (dsn is a file path or ":memory:") or DriverPostgres
// (dsn is a connection URL or keyword string).
//
// Example:
//
//	store, err := storage.Open(ctx, storage.DriverPostgres, dsn,
//	    storage.MaxOpenConns(50),
//	)
func Open(ctx context.Context, driver, dsn string, opts ...PoolOption) (*GormStore, error) {
	var (
		dialector gorm.Dialector
		base      PoolConfig
	)
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
		base = SQLitePoolConfig()
	case DriverPostgres:
		dialector = postgres.Open(dsn)
		base = DefaultPoolConfig()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("batch: open %s store: %w", driver, err)
	}
	if err := configurePool(db, base, opts...); err != nil {
		return nil, err
	}

	s := NewGormStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("batch: migrate %s store: %w", driver, err)
	}
	return s, nil
}
