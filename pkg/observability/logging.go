// Package observability wires up process-wide structured logging and
// Prometheus metrics. Grounded on the teacher's ad-hoc log/slog usage
// (pkg/queue, pkg/cleanup log with slog.Info/Warn/Error and key-value
// attributes but never configure a handler) — this package is the one place
// that decides the handler, level, and output format, so every other
// package's bare slog.Info call inherits it.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig controls the default slog handler. Read from LOG_LEVEL
// (debug|info|warn|error, default info) and LOG_FORMAT (json|text, default
// json) by cmd/pipeline-worker.
type LoggingConfig struct {
	Level  string
	Format string
}

// ConfigureLogging installs the process-wide slog default logger and
// returns it so callers can also keep a reference.
func ConfigureLogging(cfg LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
