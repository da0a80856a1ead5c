package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig configures a Logger. The zero value logs Info and above to
// stderr in text format.
type LogConfig struct {
	Level  string
	JSON   bool
	Output io.Writer
}

// Logger is a structured logger for PEP compilation and solving
type Logger struct {
	*slog.Logger
}

// ParseLevel converts a level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log level must be 'debug', 'info', 'warn' or 'error', got '%s'", name)
}

// NewLogger creates a logger from cfg; unknown levels fall back to Info
func NewLogger(cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

// LoggerFromConfig builds the logger described by a Config
func LoggerFromConfig(c *Config) *Logger {
	return NewLogger(LogConfig{Level: c.LogLevel, JSON: c.LogFormat == "json"})
}

// DefaultLogger returns an Info level text logger on stderr
func DefaultLogger() *Logger {
	return NewLogger(LogConfig{})
}

// DiscardLogger returns a logger that drops every record
func DiscardLogger() *Logger {
	return NewLogger(LogConfig{Output: io.Discard})
}

// With returns a logger that adds attrs to every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
