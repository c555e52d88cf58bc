package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/glizzus/recurring/internal/repository"
)

// Poller periodically hands due runs to a JobHandler and keeps each job
// planned ahead.
type Poller struct {
	Store     repository.RecurringJobStore
	Handler   JobHandler
	Pauses    PauseList
	Interval  time.Duration
	Lookahead time.Duration
	Logger    *slog.Logger
	Now       func() time.Time

	lastSuccess atomic.Int64
}

// Run polls until ctx is done. Failed polls are logged and retried on the
// next tick.
func (p *Poller) Run(ctx context.Context) error {
	logger := p.logger()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	logger.InfoContext(ctx, "poller started",
		slog.Duration("interval", p.Interval),
		slog.Duration("lookahead", p.Lookahead),
	)
	for {
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() == nil {
				logger.ErrorContext(ctx, "poll failed", slog.Any("error", err))
			}
		} else {
			p.lastSuccess.Store(p.now().UnixNano())
		}
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Healthy reports whether Run completed a poll within the last three
// intervals.
func (p *Poller) Healthy() bool {
	last := p.lastSuccess.Load()
	return last != 0 && p.now().Sub(time.Unix(0, last)) < 3*p.Interval
}

// Poll runs a single pass and returns how many runs were dispatched.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	logger := p.logger()
	now := p.now()

	runs, err := p.Store.Pull(ctx, now.Add(p.Lookahead))
	if err != nil {
		return 0, fmt.Errorf("failed to pull planned runs: %w", err)
	}
	if len(runs) == 0 {
		return 0, nil
	}

	var (
		dispatch []RunDispatch
		skipped  []repository.PlannedRun
	)
	for _, run := range runs {
		paused, err := p.isPaused(ctx, run.JobID)
		if err != nil {
			return 0, err
		}
		if paused {
			logger.InfoContext(ctx, "skipping paused job", NewRunDispatch(run).LogAttrs()...)
			skipped = append(skipped, run)
			continue
		}
		dispatch = append(dispatch, NewRunDispatch(run))
	}

	if len(dispatch) > 0 {
		if err := p.Handler.HandleJobs(ctx, dispatch...); err != nil {
			return 0, fmt.Errorf("failed to hand off %d runs: %w", len(dispatch), err)
		}
	}

	var errs []error
	advance := func(jobID string, runTime time.Time) {
		if err := p.Store.MarkDispatched(ctx, jobID, runTime, now); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", jobID, err))
			return
		}
		if err := p.Store.Replan(ctx, jobID, runTime); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", jobID, err))
		}
	}
	for _, job := range dispatch {
		advance(job.JobID, job.RunTime)
		logger.DebugContext(ctx, "dispatched run", job.LogAttrs()...)
	}
	for _, run := range skipped {
		advance(run.JobID, run.RunTime)
	}
	return len(dispatch), errors.Join(errs...)
}

func (p *Poller) isPaused(ctx context.Context, jobID string) (bool, error) {
	if p.Pauses == nil {
		return false, nil
	}
	paused, err := p.Pauses.IsPaused(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to check pause list: %w", err)
	}
	return paused, nil
}

func (p *Poller) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
