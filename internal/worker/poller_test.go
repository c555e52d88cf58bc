package worker_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/recurring/internal/repository"
	"github.com/glizzus/recurring/internal/worker"
	"github.com/google/go-cmp/cmp"
)

type recordingHandler struct {
	mu   sync.Mutex
	jobs []worker.RunDispatch
	err  error
}

func (h *recordingHandler) HandleJobs(_ context.Context, jobs ...worker.RunDispatch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.jobs = append(h.jobs, jobs...)
	return nil
}

func (h *recordingHandler) runTimes(jobID string) []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	var times []time.Time
	for _, job := range h.jobs {
		if job.JobID == jobID {
			times = append(times, job.RunTime)
		}
	}
	return times
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newStore(t *testing.T, c *clock) *repository.BoltRecurringJobRepository {
	t.Helper()
	store, err := repository.OpenBoltRecurringJobRepository(
		filepath.Join(t.TempDir(), "recurring.db"),
		repository.WithClock(c.Now),
		repository.WithPlanAhead(2),
	)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPollerDispatchesAndReplans(t *testing.T) {
	ctx := t.Context()
	c := &clock{now: time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)}
	store := newStore(t, c)
	if err := store.Save(ctx, repository.RecurringJob{ID: "quarter", Name: "quarter-hour", Cron: "*/15 * * * *"}); err != nil {
		t.Fatal(err)
	}

	handler := &recordingHandler{}
	poller := &worker.Poller{
		Store:     store,
		Handler:   handler,
		Pauses:    worker.NewMemoryPauseList(),
		Lookahead: time.Minute,
		Now:       c.Now,
	}

	at := func(hour, minute int) time.Time {
		return time.Date(2024, time.May, 1, hour, minute, 0, 0, time.UTC)
	}

	if n, err := poller.Poll(ctx); err != nil || n != 0 {
		t.Fatalf("Poll() at 09:00 = %d, %v; want nothing due", n, err)
	}

	c.Set(at(9, 14))
	if n, err := poller.Poll(ctx); err != nil || n != 1 {
		t.Fatalf("Poll() at 09:14 = %d, %v; want 1 run", n, err)
	}
	c.Set(at(9, 29))
	if n, err := poller.Poll(ctx); err != nil || n != 1 {
		t.Fatalf("Poll() at 09:29 = %d, %v; want 1 run", n, err)
	}
	// Save only planned 09:15 and 09:30; 09:45 comes from Replan.
	c.Set(at(9, 45))
	if n, err := poller.Poll(ctx); err != nil || n != 1 {
		t.Fatalf("Poll() at 09:45 = %d, %v; want 1 run", n, err)
	}
	if n, err := poller.Poll(ctx); err != nil || n != 0 {
		t.Fatalf("second Poll() at 09:45 = %d, %v; want nothing due", n, err)
	}

	want := []time.Time{at(9, 15), at(9, 30), at(9, 45)}
	if diff := cmp.Diff(want, handler.runTimes("quarter")); diff != "" {
		t.Errorf("dispatched runs mismatch (-want +got):\n%s", diff)
	}

	job, err := store.Get(ctx, "quarter")
	if err != nil {
		t.Fatal(err)
	}
	if job.LastRunAt == nil || !job.LastRunAt.Equal(at(9, 45)) {
		t.Errorf("LastRunAt = %v, want %v", job.LastRunAt, at(9, 45))
	}
}

func TestPollerSkipsPausedJobs(t *testing.T) {
	ctx := t.Context()
	c := &clock{now: time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)}
	store := newStore(t, c)
	for _, job := range []repository.RecurringJob{
		{ID: "a", Name: "active", Cron: "* * * * *"},
		{ID: "p", Name: "paused", Cron: "* * * * *"},
	} {
		if err := store.Save(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	pauses := worker.NewMemoryPauseList()
	if err := pauses.Pause(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	handler := &recordingHandler{}
	poller := &worker.Poller{Store: store, Handler: handler, Pauses: pauses, Now: c.Now}

	c.Set(time.Date(2024, time.May, 1, 9, 1, 0, 0, time.UTC))
	if _, err := poller.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := handler.runTimes("p"); len(got) != 0 {
		t.Errorf("paused job was dispatched at %v", got)
	}
	if got := handler.runTimes("a"); len(got) != 1 {
		t.Errorf("active job dispatched %d times, want 1", len(got))
	}

	// Resuming does not replay the runs skipped while paused.
	if err := pauses.Resume(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	c.Set(time.Date(2024, time.May, 1, 9, 2, 0, 0, time.UTC))
	if _, err := poller.Poll(ctx); err != nil {
		t.Fatal(err)
	}
	want := []time.Time{time.Date(2024, time.May, 1, 9, 2, 0, 0, time.UTC)}
	if diff := cmp.Diff(want, handler.runTimes("p")); diff != "" {
		t.Errorf("resumed job runs mismatch (-want +got):\n%s", diff)
	}
}

func TestPollerKeepsRunsWhenHandlerFails(t *testing.T) {
	ctx := t.Context()
	c := &clock{now: time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)}
	store := newStore(t, c)
	if err := store.Save(ctx, repository.RecurringJob{ID: "m", Name: "minutely", Cron: "* * * * *"}); err != nil {
		t.Fatal(err)
	}

	handler := &recordingHandler{err: errors.New("broker down")}
	poller := &worker.Poller{Store: store, Handler: handler, Now: c.Now}

	c.Set(time.Date(2024, time.May, 1, 9, 1, 0, 0, time.UTC))
	if _, err := poller.Poll(ctx); err == nil {
		t.Fatal("Poll() with a failing handler succeeded, want error")
	}

	handler.err = nil
	if n, err := poller.Poll(ctx); err != nil || n != 1 {
		t.Fatalf("Poll() after recovery = %d, %v; want the held run", n, err)
	}
}

func TestPollerRunStopsWithContext(t *testing.T) {
	c := &clock{now: time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)}
	poller := &worker.Poller{
		Store:    newStore(t, c),
		Handler:  &recordingHandler{},
		Interval: 10 * time.Millisecond,
		Now:      c.Now,
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	if err := poller.Run(ctx); err != nil {
		t.Errorf("Run() = %v, want nil after cancellation", err)
	}
}

func TestPollerHealth(t *testing.T) {
	c := &clock{now: time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)}
	poller := &worker.Poller{
		Store:    newStore(t, c),
		Handler:  &recordingHandler{},
		Interval: time.Minute,
		Now:      c.Now,
	}
	if poller.Healthy() {
		t.Fatal("Healthy() = true before any poll")
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := poller.Run(ctx); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !poller.Healthy() {
		t.Error("Healthy() = false right after a successful poll")
	}

	c.Set(c.Now().Add(3 * time.Minute))
	if poller.Healthy() {
		t.Error("Healthy() = true three intervals after the last poll")
	}
}
