package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtTrace bool
		logAtDebug bool
	}{
		{"info filters debug", "info", false, false},
		{"debug passes debug", "debug", false, true},
		{"trace passes everything", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Log(context.Background(), LevelTrace, "trace message")
			if got := strings.Contains(buf.String(), "trace message"); got != tt.logAtTrace {
				t.Errorf("trace message visible = %v, want %v (buf: %q)", got, tt.logAtTrace, buf.String())
			}

			buf.Reset()
			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "sweep line")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected level=TRACE label, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil {
		t.Fatal("Discard returned nil")
	}
	logger.Info("dropped")
}

func TestNewDecisionLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "info")

	if dl != nil {
		t.Error("expected nil DecisionLogger at info level")
	}

	// Nil logger should still be safe to use
	dl.Log(map[string]any{"event": "window_captured"})

	if _, err := os.Stat(filepath.Join(dir, "decisions.jsonl")); err == nil {
		t.Error("decisions.jsonl should not exist at info level")
	}
}

func TestNewDecisionLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	defer dl.Close()

	dl.Log(map[string]any{"event": "state_transition", "from": "running", "to": "stable_accumulating", "sweep": 12})

	data, err := os.ReadFile(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("failed to read decisions.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}

	if entry["event"] != "state_transition" {
		t.Errorf("event = %v, want state_transition", entry["event"])
	}
	if entry["sweep"] != float64(12) {
		t.Errorf("sweep = %v, want 12", entry["sweep"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in decision log entry")
	}
}

func TestDecisionLogger_DoesNotMutateEvent(t *testing.T) {
	dl := NewDecisionLoggerTo(nopCloser{&bytes.Buffer{}})
	event := map[string]any{"event": "instable"}
	dl.Log(event)

	if _, ok := event["time"]; ok {
		t.Error("Log added 'time' to the caller's map")
	}
}

func TestDecisionLogger_MultipleWrites(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDecisionLoggerTo(nopCloser{&buf})

	dl.Log(map[string]any{"event": "first"})
	dl.Log(map[string]any{"event": "second"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first, second map[string]any
	json.Unmarshal([]byte(lines[0]), &first)
	json.Unmarshal([]byte(lines[1]), &second)

	if first["event"] != "first" {
		t.Errorf("first event = %v, want 'first'", first["event"])
	}
	if second["event"] != "second" {
		t.Errorf("second event = %v, want 'second'", second["event"])
	}
}

func TestDecisionLogger_NilSafety(t *testing.T) {
	var dl *DecisionLogger
	dl.Log(map[string]any{"event": "ignored"})
	dl.Close()
}

func TestDecisionLogger_CloseTwice(t *testing.T) {
	dl := NewDecisionLoggerTo(nopCloser{&bytes.Buffer{}})
	dl.Close()
	dl.Close()
	dl.Log(map[string]any{"event": "after close"})
}

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }
