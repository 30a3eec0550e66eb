package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/fileloop/internal/models"
)

func sampleReport() *models.Report {
	return &models.Report{
		TaskID:   "task-1",
		Duration: 95 * time.Second,
		Summary:  models.Summary{Total: 3, Completed: 2, Failed: 1},
		Failures: []*models.FileState{
			{Path: "src/a.go", Status: models.StatusFailed, LastError: "verification failed"},
		},
	}
}

func TestConsoleLoggerLevels(t *testing.T) {
	t.Run("filters below configured level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewConsoleLogger(buf, "warn")

		logger.Debugf("debug %d", 1)
		logger.Infof("info %d", 2)
		logger.Warnf("warn %d", 3)
		logger.Errorf("error %d", 4)

		out := buf.String()
		if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
			t.Errorf("messages below warn should be filtered, got:\n%s", out)
		}
		if !strings.Contains(out, "[WARN] warn 3") {
			t.Errorf("expected warn message, got:\n%s", out)
		}
		if !strings.Contains(out, "[ERROR] error 4") {
			t.Errorf("expected error message, got:\n%s", out)
		}
	})

	t.Run("invalid level defaults to info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewConsoleLogger(buf, "bogus")

		logger.Debugf("hidden")
		logger.Infof("shown")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("debug should be filtered at default level, got:\n%s", out)
		}
		if !strings.Contains(out, "shown") {
			t.Errorf("info should pass at default level, got:\n%s", out)
		}
	})

	t.Run("nil writer discards", func(t *testing.T) {
		logger := NewConsoleLogger(nil, "info")
		logger.Infof("no panic")
		logger.Summary(sampleReport())
	})
}

func TestConsoleLoggerTimestampFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	logger.Infof("hello")

	line := buf.String()
	// "[HH:MM:SS] [INFO] hello"
	if len(line) < 11 || line[0] != '[' || line[9] != ']' {
		t.Errorf("expected leading [HH:MM:SS] timestamp, got %q", line)
	}
}

func TestConsoleLoggerSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	logger.Summary(sampleReport())

	out := buf.String()
	for _, want := range []string{
		"=== Run Summary ===",
		"Total files: 3",
		"Completed: 2",
		"Failed: 1",
		"Duration: 1m35s",
		"src/a.go: verification failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q, got:\n%s", want, out)
		}
	}
}

func TestConsoleLoggerSummaryInterrupted(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	report := sampleReport()
	report.Interrupted = true
	logger.Summary(report)

	if !strings.Contains(buf.String(), "resume to continue") {
		t.Errorf("expected interrupt note, got:\n%s", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m30s"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{time.Hour + time.Minute + time.Second, "1h1m1s"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.d); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestFileLoggerWritesRunLog(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "debug")
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	fl.Debugf("worker %d: claimed %s", 1, "src/a.go")
	fl.Summary(sampleReport())
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(fl.RunFile())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"=== fileloop Run Log ===",
		"worker 1: claimed src/a.go",
		"Task: task-1",
		"Completed: 2",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("run log missing %q, got:\n%s", want, content)
		}
	}
}

func TestFileLoggerLatestSymlink(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer fl.Close()

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log symlink: %v", err)
	}
	if target != filepath.Base(fl.RunFile()) {
		t.Errorf("latest.log points at %q, want %q", target, filepath.Base(fl.RunFile()))
	}
}

func TestFileLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "error")
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	fl.Infof("quiet")
	fl.Errorf("loud")
	fl.Close()

	data, _ := os.ReadFile(fl.RunFile())
	if strings.Contains(string(data), "quiet") {
		t.Error("info message should have been filtered")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("error message should have been written")
	}
}

func TestMultiFansOut(t *testing.T) {
	a := &bytes.Buffer{}
	b := &bytes.Buffer{}
	m := NewMulti(NewConsoleLogger(a, "info"), nil, NewConsoleLogger(b, "info"))

	m.Infof("hello")
	m.Summary(sampleReport())

	for name, buf := range map[string]*bytes.Buffer{"a": a, "b": b} {
		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("logger %s missing info message", name)
		}
		if !strings.Contains(buf.String(), "Run Summary") {
			t.Errorf("logger %s missing summary", name)
		}
	}
}
