// Package logging adapts the orchestrator's Logger interface to
// log/slog, writing JSON when the configured format is "json" and
// colorized tint output for any other format.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/lokutor-ai/lokutor-orchestrator/pkg/orchestrator"
)

// SlogLogger wraps a *slog.Logger to satisfy orchestrator.Logger.
type SlogLogger struct {
	l *slog.Logger
}

var _ orchestrator.Logger = (*SlogLogger)(nil)

// New builds a SlogLogger writing to w. format is either "tint" (the
// default, colorized for a terminal) or "json" (for production log
// shipping).
func New(w io.Writer, format string) *SlogLogger {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		handler = tint.NewHandler(w, &tint.Options{Level: slog.LevelDebug})
	}
	return &SlogLogger{l: slog.New(handler)}
}

// NewDefault builds a SlogLogger writing to stderr in the given format.
func NewDefault(format string) *SlogLogger {
	return New(os.Stderr, format)
}

func (s *SlogLogger) Debug(msg string, args ...interface{}) { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...interface{})  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...interface{})  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...interface{}) { s.l.Error(msg, args...) }

// With returns a SlogLogger with the given key/value pairs attached to
// every subsequent record, e.g. the call ID for a session's lifetime.
func (s *SlogLogger) With(args ...interface{}) *SlogLogger {
	return &SlogLogger{l: s.l.With(args...)}
}

// Slog exposes the underlying *slog.Logger for callers that want
// structured context.Context-aware logging directly.
func (s *SlogLogger) Slog() *slog.Logger { return s.l }

// LogAttempt logs a single reconnect/retry attempt at Warn level.
func (s *SlogLogger) LogAttempt(ctx context.Context, op string, attempt int, err error) {
	s.l.WarnContext(ctx, "retrying after error", "op", op, "attempt", attempt, "error", err)
}
