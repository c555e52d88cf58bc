package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v2"
)

// run executes the CLI and returns its output and exit code.
func run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	code := 0
	exiter := cli.OsExiter
	cli.OsExiter = func(c int) { code = c }
	t.Cleanup(func() { cli.OsExiter = exiter })

	var out, errOut bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &errOut
	if err := a.RunContext(t.Context(), append([]string{"recurring"}, args...)); err != nil && code == 0 {
		t.Fatalf("recurring %s: %v\n%s", strings.Join(args, " "), err, errOut.String())
	}
	return out.String(), code
}

func useBolt(t *testing.T) {
	t.Helper()
	t.Setenv("SCHEDULER_STORE", "bolt")
	t.Setenv("SCHEDULER_BOLT_PATH", filepath.Join(t.TempDir(), "recurring.db"))
}

func TestNext(t *testing.T) {
	out, code := run(t, "next", "--tz", "America/New_York", "--after", "2024-03-09T15:00:00Z", "-n", "2", "0 9 * * *")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	want := "2024-03-10T09:00:00-04:00\n2024-03-11T09:00:00-04:00\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	out, code := run(t, "validate", "*/5 * * * *", "@daily", "0 0 30 2 * * *")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	for i, prefix := range []string{"ok\t", "ok\t", "invalid\t"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestExplain(t *testing.T) {
	out, _ := run(t, "explain", "0 0 * 1-3 mon")
	if want := "0 0 * January-March Monday\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestJobLifecycle(t *testing.T) {
	useBolt(t)

	id, code := run(t, "add", "--name", "backup", "--cron", "0 3 * * *", "--tz", "Europe/Berlin")
	if code != 0 {
		t.Fatalf("add exit code = %d", code)
	}
	id = strings.TrimSpace(id)

	if _, code := run(t, "add", "--name", "backup", "--cron", "0 4 * * *"); code != 1 {
		t.Errorf("adding a duplicate name exit code = %d, want 1", code)
	}

	out, _ := run(t, "list", "-o", "json")
	var views []jobView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].ID != id || views[0].TimeZone != "Europe/Berlin" || views[0].NextRunAt == nil {
		t.Fatalf("list = %+v", views)
	}

	manifestPath := filepath.Join(t.TempDir(), "jobs.yaml")
	if _, code := run(t, "export", "--file", manifestPath); code != 0 {
		t.Fatalf("export exit code = %d", code)
	}
	exported, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(exported), "name: backup") {
		t.Errorf("exported manifest missing the job:\n%s", exported)
	}

	manifest := `jobs:
  - name: backup
    cron: "0 5 * * *"
  - name: report
    cron: "30 9 * * mon-fri"
    time_zone: America/New_York
`
	if err := os.WriteFile(manifestPath, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, code := run(t, "import", manifestPath); code != 0 {
		t.Fatalf("import exit code = %d", code)
	}

	out, _ = run(t, "list", "-o", "json")
	views = nil
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("after import got %d jobs, want 2", len(views))
	}
	if views[0].ID != id || views[0].Cron != "0 5 * * *" || views[0].TimeZone != "UTC" {
		t.Errorf("import did not update the existing job in place: %+v", views[0])
	}

	if out, code := run(t, "delete", id); code != 0 || out != "deleted backup\n" {
		t.Errorf("delete = %q (exit %d)", out, code)
	}
	if _, code := run(t, "delete", id); code != 1 {
		t.Errorf("deleting a missing job exit code = %d, want 1", code)
	}
}
