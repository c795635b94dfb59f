package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEntry represents a single log message with metadata
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// LogBuffer is a thread-safe circular buffer for log entries
type LogBuffer struct {
	entries []LogEntry
	index   int
	count   int
	mutex   sync.RWMutex
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{entries: make([]LogEntry, size)}
}

func (lb *LogBuffer) Add(entry LogEntry) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	lb.entries[lb.index] = entry
	lb.index = (lb.index + 1) % len(lb.entries)
	if lb.count < len(lb.entries) {
		lb.count++
	}
}

// GetRecent returns up to maxCount entries, newest first. Zero means all.
func (lb *LogBuffer) GetRecent(maxCount int) []LogEntry {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	count := lb.count
	if maxCount > 0 && maxCount < count {
		count = maxCount
	}

	size := len(lb.entries)
	result := make([]LogEntry, count)
	for i := range count {
		result[i] = lb.entries[(lb.index-1-i+size)%size]
	}
	return result
}

// LogBufferHandler is a slog.Handler that captures logs to a LogBuffer
type LogBufferHandler struct {
	buffer *LogBuffer
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

func NewLogBufferHandler(buffer *LogBuffer, level slog.Leveler) *LogBufferHandler {
	return &LogBufferHandler{buffer: buffer, level: level}
}

func (h *LogBufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogBufferHandler) Handle(_ context.Context, record slog.Record) error {
	var sb strings.Builder
	sb.WriteString(record.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	record.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", h.qualify(a.Key), a.Value)
		return true
	})

	h.buffer.Add(LogEntry{Time: record.Time, Level: record.Level, Message: sb.String()})
	return nil
}

func (h *LogBufferHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

// WithAttrs qualifies attrs with the current group right away, so a later
// WithGroup does not apply to them.
func (h *LogBufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.qualify(a.Key), Value: a.Value})
	}
	return &clone
}

func (h *LogBufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.qualify(name)
	return &clone
}

// FormatLogEntry formats a log entry for display
func FormatLogEntry(entry LogEntry) string {
	levelStr := "???"
	switch entry.Level {
	case slog.LevelDebug:
		levelStr = "DBG"
	case slog.LevelInfo:
		levelStr = "INF"
	case slog.LevelWarn:
		levelStr = "WRN"
	case slog.LevelError:
		levelStr = "ERR"
	}
	return fmt.Sprintf("%s [%s] %s", entry.Time.Format("15:04:05"), levelStr, entry.Message)
}
