// Package handler runs a single processor attempt.
//
// This is an internal package; it guards the execution of caller-supplied
// processors for the batch and queue packages:
//   - Panics are recovered into errors
//   - An optional per-attempt timeout is applied to the context
//   - An attempt whose context ends is abandoned even if the processor ignores it
package handler
