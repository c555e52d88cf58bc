package manifest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/glizzus/recurring/internal/manifest"
	"github.com/glizzus/recurring/internal/repository"
	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
jobs:
  - name: nightly-backup
    cron: "0 3 * * *"
    time_zone: Europe/London
  - id: fixed-id
    name: weekly-report
    cron: "@weekly"
    payload_key: payloads/report.json
`)

	got, err := manifest.Load(path, "UTC")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	want := &manifest.Manifest{
		Jobs: []manifest.Job{
			{Name: "nightly-backup", Cron: "0 3 * * *", TimeZone: "Europe/London"},
			{ID: "fixed-id", Name: "weekly-report", Cron: "@weekly", TimeZone: "UTC", PayloadKey: "payloads/report.json"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	jobs := []repository.RecurringJob{got.Jobs[0].RecurringJob("generated"), got.Jobs[1].RecurringJob("generated")}
	if jobs[0].ID != "generated" || jobs[1].ID != "fixed-id" {
		t.Errorf("RecurringJob() ids = %q, %q; want generated, fixed-id", jobs[0].ID, jobs[1].ID)
	}
}

func TestLoadReportsEveryInvalidJob(t *testing.T) {
	path := writeFile(t, `
jobs:
  - name: bad-cron
    cron: "61 * * * *"
  - name: bad-zone
    cron: "* * * * *"
    time_zone: Atlantis/Capital
  - cron: "* * * * *"
  - name: bad-cron
    cron: "* * * * *"
`)

	_, err := manifest.Load(path, "UTC")
	if err == nil {
		t.Fatal("Load() succeeded, want error")
	}
	for _, want := range []string{`job "bad-cron"`, `job "bad-zone"`, "job 3 has no name", "already used by job 1"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := manifest.Load(filepath.Join(t.TempDir(), "missing.yaml"), "UTC"); err == nil {
		t.Error("Load() of a missing file succeeded, want error")
	}
}

func TestWriteIsReadableByLoad(t *testing.T) {
	m := manifest.FromJobs([]repository.RecurringJob{
		{ID: "1", Name: "backup", Cron: "0 3 * * *", TimeZone: "UTC"},
		{ID: "2", Name: "report", Cron: "30 9 * * 1-5", TimeZone: "America/New_York", PayloadKey: "p"},
	})

	var sb strings.Builder
	if err := manifest.Write(&sb, m); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}

	got, err := manifest.Load(writeFile(t, sb.String()), "UTC")
	if err != nil {
		t.Fatalf("Load() of written manifest returned error: %v\n%s", err, sb.String())
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("manifest changed through Write and Load (-want +got):\n%s", diff)
	}
}
