package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON on stdout so log
// shippers can ingest it without extra parsing.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level(),
	}))
}

func level() slog.Level {
	switch os.Getenv("BVC_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
