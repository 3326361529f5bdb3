package logger

import (
	"context"
	"log/slog"
)

// loggerContextKey is the private context key for the scoped logger.
type loggerContextKey struct{}

// WithLogger returns a context carrying the given logger. Handlers and the
// task manager attach request- or task-scoped loggers this way so downstream
// code logs with the right correlation attributes.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext returns the logger carried by ctx, falling back to the process
// default when none was attached. Never returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}
