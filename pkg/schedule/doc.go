// Package schedule provides schedules for recurring batch runs.
//
// This package includes:
//   - Schedule interface for defining when a run fires
//   - Every() for fixed-interval schedules
//   - Daily() for daily schedules at a specific time
//   - Weekly() for weekly schedules on a specific day and time
//   - Cron() for cron expression-based schedules
//   - Run() for calling a function on every tick until cancelled
package schedule
