// Package logging builds the slog loggers used across cpsync.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a logger writing to stderr. Stdout carries the
// run summary and prompts.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w in "text" or "json" format.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Verbosity is the set of level flags a command accepts.
type Verbosity struct {
	Level   string // explicit --log-level, wins when set
	Debug   bool
	Quiet   bool
	Verbose bool // per-submission progress at Info
}

// Resolve picks the effective level. Without --verbose the per-submission
// Info lines are hidden by raising the floor to Warn.
func (v Verbosity) Resolve() slog.Level {
	switch {
	case v.Level != "":
		return ParseLevel(v.Level)
	case v.Debug:
		return slog.LevelDebug
	case v.Quiet || !v.Verbose:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
