package conversation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Event is one NDJSON conversation log record.
type Event struct {
	Timestamp  string `json:"ts"`
	SessionID  string `json:"session_id"`
	Stage      string `json:"stage"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	ContentRaw string `json:"content_raw,omitempty"`
}

// Logger records conversation events. Implementations must not block the
// turn path.
type Logger interface {
	Log(event Event)
	Close() error
}

type noopLogger struct{}

func (noopLogger) Log(Event) {}

func (noopLogger) Close() error { return nil }

// LogConfig controls NDJSON conversation logging.
type LogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// FileLogger appends conversation events to per-session NDJSON files, plus an
// optional global file. Writes happen on a background goroutine fed by a
// bounded queue; events are dropped (with a warning) when the queue is full.
type FileLogger struct {
	cfg    LogConfig
	queue  chan Event
	done   chan struct{}
	closed sync.Once
}

// NewLogger creates a conversation logger. When cfg.Enabled is false a no-op
// logger is returned.
func NewLogger(cfg LogConfig) (Logger, error) {
	if !cfg.Enabled {
		return noopLogger{}, nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create conversation log directory: %w", err)
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0755); err != nil {
			return nil, fmt.Errorf("create global conversation log directory: %w", err)
		}
	}

	l := &FileLogger{
		cfg:   cfg,
		queue: make(chan Event, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	go l.writeLoop()
	return l, nil
}

// Log enqueues an event without blocking. The raw content is preserved and a
// cleaned copy is added for readability.
func (l *FileLogger) Log(event Event) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	event.ContentRaw = event.Content
	event.Content = cleanForReadability(event.ContentRaw)

	select {
	case l.queue <- event:
	default:
		slog.Warn("Conversation log queue full, dropping event", "session_id", event.SessionID)
	}
}

// Close stops the writer goroutine after draining queued events.
func (l *FileLogger) Close() error {
	l.closed.Do(func() {
		close(l.queue)
		<-l.done
	})
	return nil
}

func (l *FileLogger) writeLoop() {
	defer close(l.done)
	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			slog.Warn("Failed to encode conversation log event", "error", err)
			continue
		}
		line = append(line, '\n')

		path := filepath.Join(l.cfg.Dir, sanitizeFileComponent(event.SessionID)+".ndjson")
		appendLine(path, line)

		if l.cfg.GlobalEnabled {
			appendLine(l.cfg.GlobalPath, line)
		}
	}
}

func appendLine(path string, line []byte) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Warn("Failed to open conversation log file", "path", path, "error", err)
		return
	}
	if _, err := f.Write(line); err != nil {
		slog.Warn("Failed to write conversation log line", "path", path, "error", err)
	}
	if err := f.Close(); err != nil {
		slog.Warn("Failed to close conversation log file", "path", path, "error", err)
	}
}

var (
	ansiEscapes   = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	unsafePathRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// cleanForReadability strips ANSI escape sequences and carriage returns so
// log lines stay greppable.
func cleanForReadability(s string) string {
	s = ansiEscapes.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\r", "")
}

// sanitizeFileComponent maps an arbitrary session ID onto a safe file name.
func sanitizeFileComponent(id string) string {
	cleaned := unsafePathRun.ReplaceAllString(id, "_")
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "session"
	}
	return cleaned
}
