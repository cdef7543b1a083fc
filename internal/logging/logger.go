package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vanshika/graphrepo/internal/config"
)

// New builds a slog.Logger on stderr configured according to cfg. Stdout is
// left to command output.
func New(cfg config.LoggingConfig) *slog.Logger {
	return NewWriter(os.Stderr, cfg)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.IncludeCaller,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("app", "graphrepo")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
