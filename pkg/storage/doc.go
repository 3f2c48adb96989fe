// Package storage persists job and run records with GORM.
//
// This package includes:
//   - GormStore: a core.Store backed by any GORM dialect
//   - Open: connects to SQLite or PostgreSQL and configures the connection pool
//
// The Store interface is defined in pkg/core. Queues and processors run
// in memory when no store is configured.
package storage
