package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"loan-engine/internal/config"

	"github.com/go-chi/traceid"
)

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func NewLogger(cfg config.LoggerConfig) *slog.Logger {
	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	return logger
}

// newLogger builds the handler chain. Encoding "text" is meant for local runs;
// anything else produces JSON.
func newLogger(cfg config.LoggerConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Encoding, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	handler = traceid.LogHandler(handler)
	return slog.New(handler)
}

// NewCLILogger writes human-readable logs to w, typically stderr, without
// replacing the default logger.
func NewCLILogger(w io.Writer, level string) *slog.Logger {
	return newLogger(config.LoggerConfig{Level: level, Encoding: "text"}, w)
}
