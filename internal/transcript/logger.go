// Package transcript persists chat exchanges as per-chat NDJSON files so
// conversations can be reviewed after the in-memory session is gone.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Event is one logged exchange. Timestamps are RFC3339Nano in UTC.
type Event struct {
	Timestamp string `json:"timestamp"`
	ChatID    string `json:"chat_id"`
	Route     string `json:"route,omitempty"`
	Query     string `json:"query"`
	Answer    string `json:"answer"`
	State     string `json:"state,omitempty"`
}

// Config controls the transcript logger.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Logger appends events to <dir>/<chat_id>.ndjson from a background
// goroutine. Log never blocks the request path: when the queue is full the
// event is dropped and counted.
type Logger struct {
	dir     string
	logger  *slog.Logger
	events  chan Event
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
	dropped int64
	dropMu  sync.Mutex
}

// NewLogger creates the transcript directory and starts the writer
// goroutine. A disabled config returns a nil Logger, which is safe to use.
func NewLogger(cfg Config, logger *slog.Logger) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("transcript dir is required when transcripts are enabled")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	l := &Logger{
		dir:    cfg.Dir,
		logger: logger,
		events: make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues one event. Safe to call on a nil Logger.
func (l *Logger) Log(e Event) {
	if l == nil {
		return
	}
	select {
	case l.events <- e:
	default:
		l.dropMu.Lock()
		l.dropped++
		n := l.dropped
		l.dropMu.Unlock()
		l.logger.Warn("Transcript queue full, event dropped", "chat_id", e.ChatID, "dropped_total", n)
	}
}

// Close stops the writer after draining queued events. Safe on a nil Logger.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.events)
	<-l.done
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.events {
		if err := l.write(e); err != nil {
			l.logger.Warn("Transcript write failed", "chat_id", e.ChatID, "error", err)
		}
	}
}

func (l *Logger) write(e Event) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	// Chat ids are minted server-side or validated upstream, but never trust
	// them as path components.
	name := filepath.Base(e.ChatID)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "unknown"
	}
	path := filepath.Join(l.dir, name+".ndjson")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}
