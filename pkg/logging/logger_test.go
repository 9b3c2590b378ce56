package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{" Info ", InfoLevel},
		{"warn", WarnLevel},
		{"Warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"invalid", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()

	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown too")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("Unexpected levels: %s, %s", entries[0].Level, entries[1].Level)
	}
}

func TestJSONLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Info("computed",
		RequestID("req-1"),
		Phase("local moves"),
		NodeCount(3),
		EdgeCount(2),
		Error(errors.New("boom")),
	)

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	f := entries[0].Fields
	if f["request_id"] != "req-1" || f["phase"] != "local moves" || f["error"] != "boom" {
		t.Errorf("Unexpected fields: %v", f)
	}
	if f["nodes"] != float64(3) || f["edges"] != float64(2) {
		t.Errorf("Unexpected counts: %v", f)
	}
}

func TestJSONLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewJSONLogger(&buf, InfoLevel)
	child := parent.With(Component("gateway"))

	parent.SetLevel(ErrorLevel)
	child.Info("suppressed")
	child.Error("kept", Runner("inprocess"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Fields["component"] != "gateway" || entries[0].Fields["runner"] != "inprocess" {
		t.Errorf("Unexpected fields: %v", entries[0].Fields)
	}
	if child.GetLevel() != ErrorLevel {
		t.Errorf("Expected child level ERROR, got %s", child.GetLevel())
	}
}

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, InfoLevel, FormatText)

	logger.Info("served", String("b", "2"), Int("a", 1))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " INFO served a=1 b=2") {
		t.Errorf("Unexpected text line: %q", line)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	ctx := NewContext(context.Background(), logger)
	FromContext(ctx).Info("from context")

	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("Expected entry via context logger, got %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Error("Expected default logger fallback")
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	op := StartTimer(logger, "compute", RequestID("r"))
	time.Sleep(time.Millisecond)
	op.End(Count(7))

	op = StartTimer(logger, "compute")
	op.EndError(errors.New("failed"))

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if _, ok := entries[0].Fields["latency"]; !ok {
		t.Error("Expected latency field")
	}
	if entries[0].Fields["count"] != float64(7) || entries[0].Fields["request_id"] != "r" {
		t.Errorf("Unexpected fields: %v", entries[0].Fields)
	}
	if entries[1].Level != "ERROR" || entries[1].Fields["error"] != "failed" {
		t.Errorf("Unexpected error entry: %+v", entries[1])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("ignored")
	if logger.With(Component("x")) == nil {
		t.Error("Expected NopLogger.With to return a logger")
	}
}
