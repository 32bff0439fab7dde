// Package logging provides structured logger construction for the service.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a slog.Logger writing to stderr with the given level and format.
// Format is one of "text", "json" or "console" (colorized, via tint).
func New(level, format string) *slog.Logger {
	return NewWithFile(level, format, "")
}

// NewWithFile creates a logger that additionally appends to a rotating log
// file when path is non-empty. The file output is always plain text.
func NewWithFile(level, format, path string) *slog.Logger {
	var out io.Writer = os.Stderr
	if path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "console":
		handler = tint.NewHandler(out, &tint.Options{
			Level:      ParseLevel(level),
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// ParseLevel converts a level string to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
