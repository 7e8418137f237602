package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func newTestLogger(buf *bytes.Buffer, level Level) *JSONLogger {
	l := NewJSONLogger(buf, level)
	l.now = fixedClock
	return l
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to unmarshal %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{" info ", InfoLevel},
		{"Warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	if Level(42).String() != "UNKNOWN" {
		t.Errorf("Level(42).String() = %q", Level(42).String())
	}
	if WarnLevel.String() != "WARN" {
		t.Errorf("WarnLevel.String() = %q", WarnLevel.String())
	}
}

func TestJSONLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, DebugLevel)

	logger.Info("simulation finished", Metric("interactive"), SimTime(1234.5))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != "INFO" {
		t.Errorf("Level = %v, want INFO", entry.Level)
	}
	if entry.Message != "simulation finished" {
		t.Errorf("Message = %v", entry.Message)
	}
	if entry.Fields["metric"] != "interactive" {
		t.Errorf("Fields[metric] = %v", entry.Fields["metric"])
	}
	if entry.Fields["sim_time_ms"] != 1234.5 {
		t.Errorf("Fields[sim_time_ms] = %v", entry.Fields["sim_time_ms"])
	}
	if entry.Time != "2026-01-02T03:04:05Z" {
		t.Errorf("Time = %v", entry.Time)
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != "WARN" || entries[1].Level != "ERROR" {
		t.Errorf("levels = %s, %s", entries[0].Level, entries[1].Level)
	}
}

func TestJSONLogger_NoFieldsOmitted(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, InfoLevel)
	logger.Info("bare")

	if strings.Contains(buf.String(), "fields") {
		t.Errorf("expected fields to be omitted, got %s", buf.String())
	}
}

func TestJSONLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, InfoLevel)
	child := logger.With(Component("simulator"), Origin("https://example.com"))

	child.Info("acquire", String("origin", "https://cdn.example.com"))
	logger.SetLevel(ErrorLevel)
	child.Info("dropped")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Fields["component"] != "simulator" {
		t.Errorf("component = %v", entries[0].Fields["component"])
	}
	if entries[0].Fields["origin"] != "https://cdn.example.com" {
		t.Errorf("call-site field should override preset, got %v", entries[0].Fields["origin"])
	}
	if child.GetLevel() != ErrorLevel {
		t.Errorf("child level = %v, want ErrorLevel", child.GetLevel())
	}
}

func TestJSONLogger_ConcurrentChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, InfoLevel)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child := logger.With(Int("worker", i))
			for j := 0; j < 25; j++ {
				child.Info("tick")
			}
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 200 {
		t.Errorf("Expected 200 well-formed lines, got %d", got)
	}
}

func TestFieldConstructors(t *testing.T) {
	if f := Error(errors.New("boom")); f.Key != "error" || f.Value != "boom" {
		t.Errorf("Error() = %+v", f)
	}
	if f := Error(nil); f.Value != nil {
		t.Errorf("Error(nil) = %+v", f)
	}
	if f := Duration("wait", 1500*time.Millisecond); f.Value != "1.5s" {
		t.Errorf("Duration() = %+v", f)
	}
	if f := GraphNode("net:42"); f.Key != "graph_node" || f.Value != "net:42" {
		t.Errorf("GraphNode() = %+v", f)
	}
	if f := Mode("simulate"); f.Key != "mode" {
		t.Errorf("Mode() = %+v", f)
	}
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	SetDefaultLogger(newTestLogger(&buf, DebugLevel))
	defer SetDefaultLogger(NewDefaultLogger())

	DefaultLogger().Debug("hello")
	if OrDefault(nil) != DefaultLogger() {
		t.Error("OrDefault(nil) should return the default logger")
	}
	if len(decodeLines(t, &buf)) != 1 {
		t.Errorf("expected one entry, got %q", buf.String())
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NewNopLogger()
	l.Info("nothing")
	if l.With(Count(1)) == nil {
		t.Error("With returned nil")
	}
}
