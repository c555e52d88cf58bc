// Package schedule adapts the crontab engine to recurring jobs.
//
// It accepts five or six field expressions and the common @ macros, computes
// upcoming run times in a job's time zone and builds expressions for the
// usual intervals. RunAt executes a function asynchronously at a specified time.
package schedule
