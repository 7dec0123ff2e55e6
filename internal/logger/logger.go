// Package logger is a thin package-level wrapper around log/slog so every
// package logs with the same handler, level and field names.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// standard field keys
const (
	KeyRunID     = "run_id"
	KeyJob       = "job"
	KeyPath      = "path"
	KeyOffset    = "offset"
	KeyDirection = "direction"
	KeyWorkers   = "workers"
	KeyInFlight  = "inflight"
	KeyEngine    = "engine"
	KeyError     = "error"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	mu      sync.RWMutex
	level   = new(slog.LevelVar)
	slogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
)

// Init replaces the package logger according to cfg
func Init(cfg Config) error {
	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		// assume it's a file path
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		out = f
	}

	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	return setup(out, cfg.Format, lvl)
}

// InitWriter points the logger at w. tests use it to capture output.
func InitWriter(w io.Writer, format string, lvl slog.Level) error {
	return setup(w, format, lvl)
}

func setup(out io.Writer, format string, lvl slog.Level) error {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(out, opts)
	case "json":
		h = slog.NewJSONHandler(out, opts)
	default:
		return fmt.Errorf("unsupported log format %q", format)
	}

	mu.Lock()
	defer mu.Unlock()
	level.Set(lvl)
	slogger = slog.New(h)

	return nil
}

// ParseLevel converts a level name to a slog.Level. an empty name is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", s)
	}
}

// Enabled reports whether messages at lvl are currently emitted
func Enabled(lvl slog.Level) bool {
	return level.Level() <= lvl
}

// L returns the current logger
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// With returns the current logger with args attached
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }
