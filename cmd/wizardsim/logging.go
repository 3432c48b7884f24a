package main

import (
	"log/slog"
	"os"
	"strings"
)

// logLevel reads LOG_LEVEL (DEBUG, INFO, WARN, ERROR). The default is WARN so
// that engine logs do not drown the event output.
func logLevel() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// setupLogger installs the global slog logger on stderr.
// LOG_FORMAT=json switches to JSON output; --debug forces the debug level.
func setupLogger(debug bool) *slog.Logger {
	level := logLevel()
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
