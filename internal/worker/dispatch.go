package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/glizzus/recurring/internal/repository"
)

// RunDispatch is the message handed to consumers for one run of a
// recurring job.
type RunDispatch struct {
	JobID      string    `json:"jobId"`
	Name       string    `json:"name"`
	Cron       string    `json:"cron"`
	TimeZone   string    `json:"timeZone,omitempty"`
	PayloadKey string    `json:"payloadKey,omitempty"`
	RunTime    time.Time `json:"runAt"`
}

func NewRunDispatch(run repository.PlannedRun) RunDispatch {
	return RunDispatch{
		JobID:      run.JobID,
		Name:       run.Name,
		Cron:       run.Cron,
		TimeZone:   run.TimeZone,
		PayloadKey: run.PayloadKey,
		RunTime:    run.RunTime.UTC(),
	}
}

func (d RunDispatch) LogAttrs() []any {
	return []any{
		slog.String("jobID", d.JobID),
		slog.String("jobName", d.Name),
		slog.String("runAt", d.RunTime.Format(time.RFC3339)),
	}
}

type JobHandler interface {
	HandleJobs(ctx context.Context, jobs ...RunDispatch) error
}

// PrintingJobHandler only logs the runs it receives.
type PrintingJobHandler struct {
	Logger *slog.Logger
}

func (h *PrintingJobHandler) HandleJobs(ctx context.Context, jobs ...RunDispatch) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, job := range jobs {
		attrs := append(job.LogAttrs(), slog.String("timeZone", job.TimeZone))
		if job.PayloadKey != "" {
			attrs = append(attrs, slog.String("payloadKey", job.PayloadKey))
		}
		logger.InfoContext(ctx, "Handling recurring job run", attrs...)
	}
	return nil
}

var _ JobHandler = (*PrintingJobHandler)(nil)
