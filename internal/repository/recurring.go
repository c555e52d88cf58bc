package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glizzus/recurring/internal/schedule"
)

var ErrJobNotFound = errors.New("recurring job not found")

// JobAlreadyExistsError is returned when a job is saved under a name that
// another job already uses.
type JobAlreadyExistsError struct {
	Name       string
	ExistingID string
}

func (e *JobAlreadyExistsError) Error() string {
	return fmt.Sprintf("a recurring job named %q already exists with id %s", e.Name, e.ExistingID)
}

var _ error = (*JobAlreadyExistsError)(nil)

type RecurringJob struct {
	ID          string
	Name        string
	Cron        string
	TimeZone    string
	PayloadKey  string
	PayloadSize int64
	LastRunAt   *time.Time
	CreatedAt   time.Time
}

// Location resolves the job's time zone. An empty zone means UTC.
func (j RecurringJob) Location() (*time.Location, error) {
	if j.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(j.TimeZone)
}

func (j RecurringJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("recurring job has no id")
	}
	if j.Name == "" {
		return fmt.Errorf("recurring job %s has no name", j.ID)
	}
	if err := schedule.ValidateCron(j.Cron); err != nil {
		return fmt.Errorf("recurring job %q: %w", j.Name, err)
	}
	if _, err := j.Location(); err != nil {
		return fmt.Errorf("recurring job %q has an invalid time zone: %w", j.Name, err)
	}
	return nil
}

// PlannedRun is a single upcoming run of a recurring job.
type PlannedRun struct {
	JobID      string
	Name       string
	Cron       string
	TimeZone   string
	PayloadKey string
	RunTime    time.Time
}

type RecurringJobStore interface {
	// Save inserts or replaces a job and plans its next runs. Runs planned
	// for the previous version of the job and not yet dispatched are dropped.
	Save(ctx context.Context, job RecurringJob) error
	Get(ctx context.Context, id string) (RecurringJob, error)
	// List returns every job ordered by name.
	List(ctx context.Context) ([]RecurringJob, error)
	Delete(ctx context.Context, id string) error
	// Pull returns the runs not yet dispatched that are due at or before
	// until, earliest first.
	Pull(ctx context.Context, until time.Time) ([]PlannedRun, error)
	// MarkDispatched records that the run happened at the given time.
	MarkDispatched(ctx context.Context, jobID string, runTime, at time.Time) error
	// Replan tops the job up with runs strictly after the given time.
	Replan(ctx context.Context, jobID string, after time.Time) error
}

const DefaultPlanAhead = 5

type options struct {
	planAhead int
	now       func() time.Time
}

type Option func(*options)

// WithPlanAhead sets how many upcoming runs are kept planned per job.
func WithPlanAhead(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.planAhead = n
		}
	}
}

// WithClock replaces time.Now as the base for planning on Save.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{planAhead: DefaultPlanAhead, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// planRuns computes the next n runs of the job after the given time. The
// returned times are in UTC.
func planRuns(job RecurringJob, after time.Time, n int) ([]time.Time, error) {
	loc, err := job.Location()
	if err != nil {
		return nil, err
	}
	runs, err := schedule.NextRunTimesIn(job.Cron, loc, after, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get next run times: %w", err)
	}
	for i := range runs {
		runs[i] = runs[i].UTC()
	}
	return runs, nil
}
