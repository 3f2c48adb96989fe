// Package retry provides the retry policy shared by every execution path.
//
// A Policy bounds the number of attempts and picks the wait between them:
//   - None: retry immediately
//   - Linear: Delay * attempt
//   - Exponential: Delay * 2^(attempt-1), capped at MaxDelay
//
// Processors can steer retries through core.NoRetry and core.RetryAfter.
package retry
