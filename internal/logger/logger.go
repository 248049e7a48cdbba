// Package logger builds the structured application logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger and tags every record with a component.
type Logger struct {
	*slog.Logger
	base *slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Output    io.Writer
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Component: "app",
		Output:    os.Stdout,
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: config.Level}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	component := config.Component
	if component == "" {
		component = "app"
	}
	base := slog.New(handler)
	return &Logger{
		Logger: base.With("component", component),
		base:   base,
	}
}

// WithComponent returns a child logger for a specific component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.base.With("component", component),
		base:   l.base,
	}
}

// SetDefault sets the default logger for the application
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

// ParseLevel maps a level name to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
