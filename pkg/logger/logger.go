// Package logger builds the slog loggers used by the PittState Connect binaries.
// It supports log levels, output formats, and context propagation.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel parses a string into a slog level. Unknown values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures the logger.
type Options struct {
	Output  io.Writer
	Level   slog.Level
	Format  string // json, text; empty picks json in production
	Service string

	Production bool
}

// New creates a logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	switch {
	case strings.EqualFold(opts.Format, "text"):
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	case strings.EqualFold(opts.Format, "json"), opts.Production:
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	default:
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	l := slog.New(handler)
	if opts.Service != "" {
		l = l.With("service", opts.Service)
	}
	return l
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// RequestIDKey is a common field key for request tracing.
const RequestIDKey = "request_id"

// Mentorship field helpers.
func MentorUserID(id string) slog.Attr { return slog.String("mentor_user_id", id) }
func MenteeUserID(id string) slog.Attr { return slog.String("mentee_user_id", id) }
func MatchID(id string) slog.Attr      { return slog.String("match_id", id) }
func Component(name string) slog.Attr  { return slog.String("component", name) }
