package transcript

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesPerChatNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewLogger(Config{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ChatID:    "abc123",
		Route:     "general",
		Query:     "o que é eletrólise?",
		Answer:    "resposta",
		State:     "idle",
	})

	path := filepath.Join(dir, "abc123.ndjson")
	line := waitForLogLine(t, path)
	var got Event
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Query != "o que é eletrólise?" {
		t.Fatalf("unexpected query: %q", got.Query)
	}
	if got.Answer != "resposta" {
		t.Fatalf("unexpected answer: %q", got.Answer)
	}
}

func TestLoggerAppendsAcrossTurns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewLogger(Config{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Log(Event{ChatID: "chat-1", Query: "q1", Answer: "a1"})
	logger.Log(Event{ChatID: "chat-1", Query: "q2", Answer: "a2"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "chat-1.ndjson"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
}

func TestDisabledLoggerIsNilAndSafe(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(Config{Enabled: false}, slog.Default())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger != nil {
		t.Fatal("expected nil logger when disabled")
	}
	logger.Log(Event{ChatID: "x"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close on nil logger: %v", err)
	}
}

func TestChatIDNeverEscapesDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewLogger(Config{Enabled: true, Dir: dir, QueueSize: 4}, slog.Default())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Log(Event{ChatID: "../../etc/escape", Query: "q", Answer: "a"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "escape.ndjson")); err != nil {
		t.Fatalf("expected transcript confined to dir: %v", err)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
