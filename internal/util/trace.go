package util

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type traceKey struct{}

// NewTraceID returns a fresh trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID attaches a trace id to the context. An empty id generates a
// fresh one so downstream stages always have something to log.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewTraceID()
	}
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID extracts the trace id from the context, or "" when none is set.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceKey{}).(string); ok {
		return id
	}
	return ""
}

// Sleep blocks for d or until the context is cancelled, whichever comes
// first. The context error is returned on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
