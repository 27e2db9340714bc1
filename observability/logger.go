package observability

import (
	"log/slog"
	"os"

	"github.com/opsloop/sentinel/config"
)

// NewLogger builds the process-wide structured logger from ObservConfig's
// log level/format (env LOG_LEVEL/LOG_FORMAT, §2 ambient stack).
func NewLogger(cfg config.ObservConfig) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
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
