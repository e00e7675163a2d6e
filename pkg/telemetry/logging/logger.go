package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"carelog/factstore/pkg/config"
)

// level is the process-wide log level. Holding it in a LevelVar lets the
// configuration watcher change verbosity without rebuilding handlers.
var level slog.LevelVar

// Setup builds a slog.Logger from the logging configuration, installs it as
// the process default, and returns it. Output goes to w, or os.Stdout when
// w is nil.
func Setup(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level.Set(lvl)

	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: &level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json", "":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// SetLevel changes the process-wide log level. Unknown levels are ignored
// so a bad reloaded configuration cannot silence logging.
func SetLevel(levelStr string) {
	lvl, err := ParseLevel(levelStr)
	if err != nil {
		slog.Warn("ignoring unknown log level", "level", levelStr)
		return
	}
	level.Set(lvl)
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "debug", "DEBUG":
		return slog.LevelDebug, nil
	case "info", "INFO", "":
		return slog.LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn, nil
	case "error", "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}
