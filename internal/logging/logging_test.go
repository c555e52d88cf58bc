package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/glizzus/recurring/internal/logging"
)

func TestParseLevel(t *testing.T) {
	table := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range table {
		if got := logging.ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := logging.WithComponent(logging.New(&buf, "info", "json"), "poller")
	logger.Debug("hidden")
	logger.Info("planned", slog.String("job", "backup"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output %q is not a single JSON object: %v", buf.String(), err)
	}
	if entry["msg"] != "planned" || entry["component"] != "poller" || entry["job"] != "backup" {
		t.Errorf("unexpected entry %v", entry)
	}
	source, _ := entry["source"].(map[string]any)
	if file, _ := source["file"].(string); !strings.HasPrefix(file, "internal/") && !strings.HasSuffix(file, "_test.go") {
		t.Errorf("source file %q was not shortened", file)
	}
}

func TestNewText(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logging.New(&buf, "debug", "text")
	slog.Debug("planned")

	if !strings.Contains(buf.String(), "level=DEBUG") {
		t.Errorf("text output %q does not contain the debug entry", buf.String())
	}
}
