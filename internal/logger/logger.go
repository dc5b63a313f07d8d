// Package logger builds the JSON slog logger shared by the server and
// carries request-scoped fields through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
)

// New returns a JSON logger writing to w at the named level.  Unknown
// level names fall back to info.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) slog.Level {
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

// WithRequest stores the request id and the authenticated user id (0 for
// anonymous requests) on ctx.
func WithRequest(ctx context.Context, requestID string, userID uint64) context.Context {
	if requestID != "" {
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
	}
	if userID != 0 {
		ctx = context.WithValue(ctx, UserIDKey, userID)
	}
	return ctx
}

// WithContext returns base enriched with the request fields found on ctx.
func WithContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		base = base.With("request_id", requestID)
	}
	if userID := ctx.Value(UserIDKey); userID != nil {
		base = base.With("user_id", userID)
	}
	return base
}
