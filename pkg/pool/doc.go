// Package pool provides the bounded worker pool used by batch runs.
//
// This package includes:
//   - Pool: runs indexed tasks with at most Size in flight
//   - Refill: Barrier (chunk by chunk) or Immediate (a freed slot is reused at once)
//   - Gate: Running/Paused/Stopped state consulted before every start decision
package pool
