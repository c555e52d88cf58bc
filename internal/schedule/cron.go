package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glizzus/recurring/internal/crontab"
)

var ErrInvalidCount = errors.New("count must be greater than 0")

var macros = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// Parse parses a cron expression. Six fields mean the expression starts
// with seconds.
func Parse(cron string) (*crontab.Schedule, error) {
	cron = strings.TrimSpace(cron)
	if expanded, ok := macros[strings.ToLower(cron)]; ok {
		cron = expanded
	}
	opts := crontab.ParseOptions{
		IncludingSeconds: len(strings.Fields(cron)) == 6,
	}
	return crontab.Parse(cron, opts)
}

func ValidateCron(cron string) error {
	if _, err := Parse(cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// NextRunTimes returns the next N run times that a cron expression will run.
// Each run time is in UTC.
func NextRunTimes(cron string, n int) ([]time.Time, error) {
	cutoff := time.Now().UTC()
	return NextRunTimesAfter(cron, cutoff, n)
}

// NextRunTimesAfter returns the next N run times after a specific time,
// evaluated in UTC. Fewer than N are returned if the schedule stops firing.
func NextRunTimesAfter(cron string, after time.Time, n int) ([]time.Time, error) {
	return NextRunTimesIn(cron, time.UTC, after, n)
}

// NextRunTimesIn evaluates the expression against the wall clock of loc.
// The returned times are in loc.
func NextRunTimesIn(cron string, loc *time.Location, after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, ErrInvalidCount
	}
	if loc == nil {
		loc = time.UTC
	}
	s, err := Parse(cron)
	if err != nil {
		return nil, err
	}

	runs := make([]time.Time, 0, n)
	for wall := range s.Occurrences(toWallClock(after.In(loc)), crontab.MaxTime) {
		run := fromWallClock(wall, loc)
		// In the hour repeated when clocks fall back, wall times just after
		// the second pass map to the first and so precede after.
		if !run.After(after) {
			continue
		}
		runs = append(runs, run)
		if len(runs) == n {
			break
		}
	}
	return runs, nil
}

// NextRunIn is NextRunTimesIn for a single run. ok is false when the
// schedule never fires again.
func NextRunIn(cron string, loc *time.Location, after time.Time) (next time.Time, ok bool, err error) {
	runs, err := NextRunTimesIn(cron, loc, after, 1)
	if err != nil || len(runs) == 0 {
		return time.Time{}, false, err
	}
	return runs[0], true, nil
}

func toWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// fromWallClock places a naive wall clock time in loc. Times skipped by a
// daylight saving transition move forward by the size of the gap.
func fromWallClock(wall time.Time, loc *time.Location) time.Time {
	t := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
	if toWallClock(t).Equal(wall) {
		return t
	}
	_, offset := t.Zone()
	return wall.Add(-time.Duration(offset) * time.Second).In(loc)
}

func Minutely() string {
	return "* * * * *"
}

func Hourly(minute int) string {
	return fmt.Sprintf("%d * * * *", minute)
}

func Daily(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

func Weekly(day time.Weekday, hour, minute int) string {
	return fmt.Sprintf("%d %d * * %d", minute, hour, day)
}

func Monthly(day, hour, minute int) string {
	return fmt.Sprintf("%d %d %d * *", minute, hour, day)
}

func Yearly(month time.Month, day, hour, minute int) string {
	return fmt.Sprintf("%d %d %d %d *", minute, hour, day, month)
}

// Never returns an expression that never fires.
func Never() string {
	return "0 0 31 2 *"
}

// Explain renders the expression with month and weekday names.
func Explain(cron string) (string, error) {
	s, err := Parse(cron)
	if err != nil {
		return "", err
	}
	return s.Explain(), nil
}
