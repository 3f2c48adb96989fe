// Package batch provides one-shot batch execution with bounded concurrency.
//
// This package includes:
//   - ProcessBatch: runs a slice of inputs through a processor and returns a Result
//   - Processor: a stateful wrapper that accumulates items and runs the pending ones on Start
//   - Option: configuration for concurrency, retries, refill policy, timeouts and callbacks
//
// Failures are reported as data in Result.Failed; a failing item never aborts the batch.
//
// Most users should import the root package github.com/jdziat/simple-batch-jobs
// which re-exports these types.
package batch
