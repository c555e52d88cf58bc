package worker

import (
	"context"
	"log/slog"

	"github.com/glizzus/recurring/internal/schedule"
)

type JobReceiver interface {
	ReceiveJobs(ctx context.Context) ([]RunDispatch, error)
}

// Consumer receives dispatched runs and executes each one at its run time.
type Consumer struct {
	Receiver JobReceiver
	Execute  func(ctx context.Context, job RunDispatch)
	Logger   *slog.Logger
}

// Run receives until ctx is done or the receiver fails. Runs that were
// received but have not started yet are dropped when ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for {
		jobs, err := c.Receiver.ReceiveJobs(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		for _, job := range jobs {
			logger.DebugContext(ctx, "scheduling run", job.LogAttrs()...)
			schedule.RunAt(ctx, job.RunTime, func(ctx context.Context) {
				c.Execute(ctx, job)
			})
		}
	}
}
