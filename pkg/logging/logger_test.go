package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesServiceLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	if err := logger.Info(CategoryRelay, "request_complete", "primary succeeded", map[string]any{
		"backend": "claude",
	}); err != nil {
		t.Fatalf("Info: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "promptgate.jsonl"))
	if err != nil {
		t.Fatalf("read service log: %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Category != CategoryRelay || event.EventType != "request_complete" {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
}

func TestLoggerDuplicatesErrors(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	if err := logger.Error(CategoryExecutor, "spawn_failed", "binary missing", nil); err != nil {
		t.Fatalf("Error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "errors.jsonl"))
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	if !strings.Contains(string(data), "spawn_failed") {
		t.Errorf("error log missing event: %s", data)
	}
}

func TestLoggerMinLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	// Default min level is info; debug should be dropped.
	if err := logger.Debug(CategoryServer, "request_start", "", nil); err != nil {
		t.Fatalf("Debug: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "promptgate.jsonl"))
	if len(data) != 0 {
		t.Errorf("debug event should have been filtered, got %s", data)
	}

	logger.SetMinLevel(LevelDebug)
	if err := logger.Debug(CategoryServer, "request_start", "", nil); err != nil {
		t.Fatalf("Debug: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "promptgate.jsonl"))
	if len(data) == 0 {
		t.Error("debug event should be written after lowering min level")
	}
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	if err := logger.Error(CategoryRelay, "whatever", "discarded", nil); err != nil {
		t.Fatalf("Nop logger should never fail: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
