// Package queue provides a long-lived job queue that starts work as soon as
// items are added.
//
// This package includes:
//   - Queue: adds items, refills free slots immediately, and supports pause and clear
//   - Option: configuration for concurrency, retries, timeouts, and persistence
//   - OnUpdate: ordered snapshots of every job after each change
//   - Event subscription for monitoring
//
// Most users should import the root package github.com/jdziat/simple-batch-jobs
// which re-exports Queue and its option functions.
package queue
