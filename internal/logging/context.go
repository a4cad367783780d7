package logging

import (
	"context"
	"time"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
			return l
		}
	}
	return Global()
}

// DetachContext creates a context that won't be cancelled when parent is.
// Values (including the request logger) are preserved.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout creates a detached context with its own timeout.
// Conversation memory writes use it so a disconnecting caller does not
// truncate the recorded exchange.
//
//	writeCtx, cancel := logging.DetachContextWithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	err := store.AddTurn(writeCtx, userID, memory.RoleUser, message)
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(parent)
	return context.WithTimeout(detached, timeout)
}
