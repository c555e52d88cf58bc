package worker_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/glizzus/recurring/internal/repository"
	"github.com/glizzus/recurring/internal/worker"
	"github.com/google/go-cmp/cmp"
)

func TestNewRunDispatch(t *testing.T) {
	paris := time.FixedZone("CEST", 2*60*60)
	run := repository.PlannedRun{
		JobID:      "id",
		Name:       "report",
		Cron:       "30 9 * * 1-5",
		TimeZone:   "Europe/Paris",
		PayloadKey: "payloads/report.json",
		RunTime:    time.Date(2024, 5, 1, 9, 30, 0, 0, paris),
	}
	want := worker.RunDispatch{
		JobID:      "id",
		Name:       "report",
		Cron:       "30 9 * * 1-5",
		TimeZone:   "Europe/Paris",
		PayloadKey: "payloads/report.json",
		RunTime:    time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC),
	}
	got := worker.NewRunDispatch(run)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewRunDispatch() mismatch (-want +got):\n%s", diff)
	}
	if got.RunTime.Location() != time.UTC {
		t.Errorf("RunTime location = %v, want UTC", got.RunTime.Location())
	}
}

func TestPrintingJobHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := &worker.PrintingJobHandler{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	err := handler.HandleJobs(t.Context(), worker.RunDispatch{
		JobID:   "id",
		Name:    "backup",
		RunTime: time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("HandleJobs() returned error: %v", err)
	}
	for _, want := range []string{"jobName=backup", "runAt=2024-05-01T03:00:00Z"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log output %q does not contain %q", buf.String(), want)
		}
	}
}
