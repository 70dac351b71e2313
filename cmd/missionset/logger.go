package main

import (
	"io"
	"log/slog"
)

// newLogger builds the CLI logger. The default level is warn, so skipped
// type directories are reported without --log-level.
func newLogger(levelStr, formatStr string, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, usagef("unknown log level %q (want debug, info, warn, or error)", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch formatStr {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, usagef("unknown log format %q (want text or json)", formatStr)
	}
	return slog.New(handler), nil
}
