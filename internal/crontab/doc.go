// Package crontab parses cron expressions and computes their next occurrences.
//
// An expression has five fields, or six when seconds are included:
//
//	┌───────────── second (0-59, optional)
//	│ ┌───────────── minute (0-59)
//	│ │ ┌───────────── hour (0-23)
//	│ │ │ ┌───────────── day of month (1-31)
//	│ │ │ │ ┌───────────── month (1-12 or January-December)
//	│ │ │ │ │ ┌───────────── day of week (0-6 or Sunday-Saturday, 0=Sunday)
//	│ │ │ │ │ │
//	* * * * * *
//
// Each field is a comma-separated list of *, */N, V, A-B, A-B/N or V/N items.
// Names may be abbreviated to any case-insensitive prefix.
//
// Day of month and day of week are intersected: a date must satisfy both.
//
// The package is timezone-naive. Next and NextBefore work on the wall clock
// of whatever time they are given; callers convert zones before and after.
package crontab
