package schedule

import (
	"context"
	"time"
)

// RunAt calls execute in a new goroutine once runAt is reached. execute is
// never called if ctx is done first.
func RunAt(ctx context.Context, runAt time.Time, execute func(ctx context.Context)) {
	go func() {
		timer := time.NewTimer(time.Until(runAt))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		execute(ctx)
	}()
}
