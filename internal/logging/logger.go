package logging

import (
	"io"
	"log/slog"
	"os"
	"sort"
)

// Logger is a thin wrapper over slog.Logger that adds field helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger returns a text logger at debug level for development and a JSON
// logger at info level otherwise, both writing to stdout.
func NewLogger(isDevelopment bool) *Logger {
	return New(os.Stdout, isDevelopment)
}

func New(w io.Writer, isDevelopment bool) *Logger {
	if isDevelopment {
		return &Logger{slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	}
	return &Logger{slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))}
}

// NewNop discards everything. Used by tests.
func NewNop() *Logger {
	return New(io.Discard, false)
}

// WithFields returns a child logger carrying the given fields. Keys are
// sorted so output is stable.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return &Logger{l.Logger.With(args...)}
}
