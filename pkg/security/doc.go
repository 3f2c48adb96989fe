// Package security provides validation, sanitization, and limits for the batch packages.
//
// This package includes:
//   - Name validation for queues and processors (used as the persisted source)
//   - Error message sanitization before messages are recorded on jobs
//   - Clamping functions to enforce safe limits on retries and concurrency
//
// Most users should import the root package github.com/jdziat/simple-batch-jobs
// which re-exports these functions.
package security
