// Package core provides the fundamental types and interfaces for the batch packages.
//
// This package contains:
//   - The generic Job record and its status state machine
//   - Result and Failure types returned by batch runs
//   - Record and RunRecord persistence models with GORM annotations
//   - Store interface defining the persistence contract
//   - Event types for queue monitoring
//   - Error types for job processing
//
// Most users should import the root package github.com/jdziat/simple-batch-jobs
// instead of this package directly.
package core
