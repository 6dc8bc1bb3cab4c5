// Package logging provides leveled logging and diagnostic tracing for hexmetrics.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A DiagnosticLogger for structured JSONL diagnostics (skipped sources,
//     dropped rounds, legend anomalies), rotated by size
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nvandessel/hexmetrics/internal/models"
)

// LevelTrace is a custom slog level below Debug for per-source and per-round
// detail.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace", "warn", "error" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Rotation bounds the size and age of the diagnostics file.
type Rotation struct {
	MaxSizeMB  int  `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool `yaml:"compress" json:"compress"`
}

// DiagnosticLogger writes structured diagnostic events to a JSONL file.
// It is safe for concurrent use. A nil DiagnosticLogger is safe to use;
// all methods are no-ops on nil receiver.
type DiagnosticLogger struct {
	mu  sync.Mutex
	out io.WriteCloser
}

// NewDiagnosticLogger creates a diagnostic logger appending to path, rotated
// according to rot. Returns nil when path is empty. Missing parent
// directories are created on first write.
func NewDiagnosticLogger(path string, rot Rotation) *DiagnosticLogger {
	if path == "" {
		return nil
	}
	return &DiagnosticLogger{out: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rot.MaxSizeMB,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAgeDays,
		Compress:   rot.Compress,
	}}
}

// Log writes an event as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
// Safe to call on nil receiver.
func (dl *DiagnosticLogger) Log(event map[string]any) {
	if dl == nil {
		return
	}

	// Copy to avoid mutating caller's map
	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.out == nil {
		return
	}
	_, _ = dl.out.Write(data)
}

// Diagnostic records one pipeline diagnostic tagged with the invocation ID.
func (dl *DiagnosticLogger) Diagnostic(invocation string, d models.Diagnostic) {
	dl.Log(map[string]any{
		"invocation": invocation,
		"kind":       string(d.Kind),
		"source":     d.Source,
		"message":    d.Message,
	})
}

// Close closes the underlying file. Safe to call on nil receiver.
func (dl *DiagnosticLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.out != nil {
		dl.out.Close()
		dl.out = nil
	}
}
