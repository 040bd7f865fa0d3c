// Package corelog provides the structured logging used across every
// component of the food-delivery core, modeled on the hand-rolled JSON
// logger in adal4ik-wheres-my-pizza/internal/common/logger: one JSON object
// per line on stdout, a component tag, and a free-form field map.
//
// No third-party structured-logging library appears in any complete example
// repo's non-test code (the corpus reaches for encoding/json plus the
// standard log package at most), so this package stays on the standard
// library by design.
package corelog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Logger writes structured JSON lines tagged with a component name.
type Logger struct {
	component string
	mu        *sync.Mutex
	out       *os.File
}

var sharedMu sync.Mutex

// New returns a Logger for the named component ("ring", "store", "orders",
// "coordinator", "reaper", "transport", ...). All Loggers share one mutex so
// concurrent components never interleave a line.
func New(component string) *Logger {
	return &Logger{component: component, mu: &sharedMu, out: os.Stdout}
}

func (l *Logger) write(level, msg string, fields map[string]any, err error) {
	entry := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level,
		"component": l.component,
		"msg":       msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		entry["error"] = err.Error()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = json.NewEncoder(l.out).Encode(entry)
}

// Info logs a routine event.
func (l *Logger) Info(msg string, fields map[string]any) { l.write("INFO", msg, fields, nil) }

// Warn logs a recoverable anomaly: a transient transport error, a timeout
// that's about to trigger remediation, a protocol violation that dropped a
// frame.
func (l *Logger) Warn(msg string, fields map[string]any) { l.write("WARN", msg, fields, nil) }

// Error logs a failure that a caller should have handled but is being
// logged-and-continued instead, the log-and-drop policy for protocol
// violations.
func (l *Logger) Error(msg string, err error, fields map[string]any) {
	l.write("ERROR", msg, fields, err)
}
