package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"TRACE": slog.LevelInfo,
	}
	for value, want := range tests {
		t.Setenv("LOG_LEVEL", value)
		if got := LogLevel(); got != want {
			t.Errorf("LOG_LEVEL=%q: expected %v, got %v", value, want, got)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithTask(WithWorkflow(WithRunID(NewLogger(&buf, "json", slog.LevelInfo), "r1"), "Project"), "Project[0]")

	logger.Info("task started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["run_id"] != "r1" || entry["workflow"] != "Project" || entry["task"] != "Project[0]" {
		t.Errorf("unexpected attributes: %v", entry)
	}
}

func TestNewLogger_TextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be written")
	}
}

func TestFromContext(t *testing.T) {
	logger := NewLogger(&bytes.Buffer{}, "text", slog.LevelInfo)
	ctx := WithLogger(context.Background(), logger)

	if FromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(nil)

	m.TaskFinished("shell.exec", "COMPLETED", time.Second)
	m.TaskFinished("shell.exec", "COMPLETED", time.Second)
	m.TaskFinished("shell.exec", "FAILED", time.Second)
	m.RunFinished("FAILED")
	m.SetServices(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`autorun_tasks_total{kind="shell.exec",status="COMPLETED"} 2`,
		`autorun_tasks_total{kind="shell.exec",status="FAILED"} 1`,
		`autorun_runs_total{status="FAILED"} 1`,
		`autorun_services_running 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output should contain %s", want)
		}
	}
}
