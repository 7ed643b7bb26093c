// Package logger provides structured logging setup for CodeAssist.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/CodeAssist/internal/config"
)

const (
	asyncBuffer  = 4096
	asyncWorkers = 2
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record and the
// request and task IDs carried by the context. When cfg.Async is set, records
// are handed to a buffered worker pool; the returned Flusher drains it.
func New(cfg config.Logging) (*slog.Logger, Flusher) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(cfg config.Logging, w io.Writer) (*slog.Logger, Flusher) {
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	var flusher Flusher = syncFlusher{}
	if cfg.Async {
		ah := NewAsyncHandler(handler, asyncBuffer, asyncWorkers)
		handler, flusher = ah, ah
	}

	return slog.New(NewContextHandler(handler)).With("service", cfg.Service), flusher
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
