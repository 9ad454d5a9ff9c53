// Package logging configures the process-wide structured logger.
//
// Components obtain their loggers with
// slog.Default().With("component", ...), so Setup must run before any
// component is constructed. The level can be changed at runtime through
// SetLevel, which the config hot reload uses.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"alameda-hq/cantina/pkg/config"
)

// levelVar backs the active level so reloads apply without rebuilding
// handlers.
var levelVar slog.LevelVar

// Setup builds the slog handler from the logging config and installs it
// as the default logger. Returns a closer for file outputs.
func Setup(cfg config.LoggingConfig) (func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	levelVar.Set(level)

	var writer io.Writer
	closer := func() error { return nil }
	switch cfg.Output {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output %q: %w", cfg.Output, err)
		}
		writer = f
		closer = f.Close
	}

	opts := &slog.HandlerOptions{Level: &levelVar}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
	return closer, nil
}

// SetLevel changes the active log level. Safe to call while logging.
func SetLevel(levelStr string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	levelVar.Set(level)
	return nil
}

// ParseLevel parses a log level string into a slog.Level.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}
