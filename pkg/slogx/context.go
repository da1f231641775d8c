package slogx

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithContext stores logger for FromContext to find. HTTPMiddleware does
// this for every request with the request ID already attached.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request logger, or slog.Default outside a request.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
