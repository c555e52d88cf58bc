package repository_test

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/glizzus/recurring/internal/repository"
	"github.com/google/go-cmp/cmp"
)

type storeFactory func(t *testing.T, opts ...repository.Option) repository.RecurringJobStore

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func day(d, hour, minute int) time.Time {
	return time.Date(2024, time.January, d, hour, minute, 0, 0, time.UTC)
}

// testRecurringJobStore runs the behaviour every store must share.
func testRecurringJobStore(t *testing.T, newStore storeFactory) {
	ctx := t.Context()
	store := newStore(t,
		repository.WithPlanAhead(3),
		repository.WithClock(func() time.Time { return epoch }),
	)

	backup := repository.RecurringJob{
		ID:       "0190a1d2-0000-7000-8000-000000000001",
		Name:     "backup",
		Cron:     "0 3 * * *",
		TimeZone: "UTC",
	}
	report := repository.RecurringJob{
		ID:         "0190a1d2-0000-7000-8000-000000000002",
		Name:       "report",
		Cron:       "30 9 * * 1-5",
		TimeZone:   "America/New_York",
		PayloadKey: "payloads/report.json",
	}
	for _, job := range []repository.RecurringJob{backup, report} {
		if err := store.Save(ctx, job); err != nil {
			t.Fatalf("Save(%s) returned error: %v", job.Name, err)
		}
	}

	t.Run("Pull returns due runs in time order", func(t *testing.T) {
		got, err := store.Pull(ctx, day(2, 0, 0))
		if err != nil {
			t.Fatalf("Pull() returned error: %v", err)
		}
		want := []repository.PlannedRun{
			{JobID: backup.ID, Name: "backup", Cron: "0 3 * * *", TimeZone: "UTC", RunTime: day(1, 3, 0)},
			{JobID: report.ID, Name: "report", Cron: "30 9 * * 1-5", TimeZone: "America/New_York", PayloadKey: "payloads/report.json", RunTime: day(1, 14, 30)},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Pull() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Get and List return saved jobs", func(t *testing.T) {
		got, err := store.Get(ctx, report.ID)
		if err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if got.Name != report.Name || got.Cron != report.Cron || got.TimeZone != report.TimeZone || got.PayloadKey != report.PayloadKey {
			t.Errorf("Get() = %+v, want %+v", got, report)
		}
		if !got.CreatedAt.Equal(epoch) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, epoch)
		}

		jobs, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() returned error: %v", err)
		}
		var names []string
		for _, job := range jobs {
			names = append(names, job.Name)
		}
		if diff := cmp.Diff([]string{"backup", "report"}, names); diff != "" {
			t.Errorf("List() names mismatch (-want +got):\n%s", diff)
		}

		if _, err := store.Get(ctx, "missing"); !errors.Is(err, repository.ErrJobNotFound) {
			t.Errorf("Get(missing) error = %v, want %v", err, repository.ErrJobNotFound)
		}
	})

	t.Run("Save rejects a name owned by another job", func(t *testing.T) {
		clash := backup
		clash.ID = "0190a1d2-0000-7000-8000-000000000003"
		err := store.Save(ctx, clash)
		var exists *repository.JobAlreadyExistsError
		if !errors.As(err, &exists) {
			t.Fatalf("Save() error = %v, want *JobAlreadyExistsError", err)
		}
		if exists.Name != "backup" {
			t.Errorf("JobAlreadyExistsError.Name = %q, want %q", exists.Name, "backup")
		}
	})

	t.Run("Save rejects invalid jobs", func(t *testing.T) {
		for _, job := range []repository.RecurringJob{
			{ID: "bad-cron", Name: "bad-cron", Cron: "* * *"},
			{ID: "bad-zone", Name: "bad-zone", Cron: "* * * * *", TimeZone: "Nowhere/Special"},
			{ID: "no-name", Cron: "* * * * *"},
		} {
			if err := store.Save(ctx, job); err == nil {
				t.Errorf("Save(%+v) succeeded, want error", job)
			}
		}
	})

	t.Run("MarkDispatched and Replan move the job forward", func(t *testing.T) {
		if err := store.MarkDispatched(ctx, backup.ID, day(1, 3, 0), day(1, 3, 0).Add(time.Second)); err != nil {
			t.Fatalf("MarkDispatched() returned error: %v", err)
		}
		if err := store.Replan(ctx, backup.ID, day(1, 3, 0)); err != nil {
			t.Fatalf("Replan() returned error: %v", err)
		}

		got, err := store.Pull(ctx, day(5, 0, 0))
		if err != nil {
			t.Fatalf("Pull() returned error: %v", err)
		}
		var backupRuns []time.Time
		for _, run := range got {
			if run.JobID == backup.ID {
				backupRuns = append(backupRuns, run.RunTime)
			}
		}
		want := []time.Time{day(2, 3, 0), day(3, 3, 0), day(4, 3, 0)}
		if diff := cmp.Diff(want, backupRuns); diff != "" {
			t.Errorf("backup runs mismatch (-want +got):\n%s", diff)
		}

		job, err := store.Get(ctx, backup.ID)
		if err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if job.LastRunAt == nil || !job.LastRunAt.Equal(day(1, 3, 0)) {
			t.Errorf("LastRunAt = %v, want %v", job.LastRunAt, day(1, 3, 0))
		}
	})

	t.Run("Save replaces pending runs of an edited job", func(t *testing.T) {
		edited := backup
		edited.Cron = "0 4 * * *"
		if err := store.Save(ctx, edited); err != nil {
			t.Fatalf("Save() returned error: %v", err)
		}

		got, err := store.Pull(ctx, day(10, 0, 0))
		if err != nil {
			t.Fatalf("Pull() returned error: %v", err)
		}
		var backupRuns []time.Time
		for _, run := range got {
			if run.JobID == backup.ID {
				backupRuns = append(backupRuns, run.RunTime)
			}
		}
		want := []time.Time{day(1, 4, 0), day(2, 4, 0), day(3, 4, 0)}
		if diff := cmp.Diff(want, backupRuns); diff != "" {
			t.Errorf("edited backup runs mismatch (-want +got):\n%s", diff)
		}

		job, err := store.Get(ctx, backup.ID)
		if err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if job.LastRunAt == nil {
			t.Error("editing a job cleared its last run")
		}
	})

	t.Run("Delete removes the job and its runs", func(t *testing.T) {
		if err := store.Delete(ctx, report.ID); err != nil {
			t.Fatalf("Delete() returned error: %v", err)
		}
		if err := store.Delete(ctx, report.ID); !errors.Is(err, repository.ErrJobNotFound) {
			t.Errorf("second Delete() error = %v, want %v", err, repository.ErrJobNotFound)
		}
		if err := store.MarkDispatched(ctx, report.ID, day(1, 14, 30), day(1, 14, 30)); !errors.Is(err, repository.ErrJobNotFound) {
			t.Errorf("MarkDispatched() on a deleted job error = %v, want %v", err, repository.ErrJobNotFound)
		}
		if err := store.Replan(ctx, report.ID, epoch); !errors.Is(err, repository.ErrJobNotFound) {
			t.Errorf("Replan() on a deleted job error = %v, want %v", err, repository.ErrJobNotFound)
		}

		got, err := store.Pull(ctx, day(31, 0, 0))
		if err != nil {
			t.Fatalf("Pull() returned error: %v", err)
		}
		for _, run := range got {
			if run.JobID == report.ID {
				t.Errorf("Pull() returned run %+v of a deleted job", run)
			}
		}
	})
}
