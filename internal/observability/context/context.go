package obscontext

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type storeIDKey struct{}
type actorKey struct{}

type actorValue struct {
	actorType string
	actorID   string
}

// WithRequestID stores the request ID used to correlate log entries.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID, if set.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

// WithStoreID annotates the context with the store an operation touches.
func WithStoreID(ctx context.Context, storeID string) context.Context {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return ctx
	}
	return context.WithValue(ctx, storeIDKey{}, storeID)
}

// StoreIDFromContext returns the store ID, if set.
func StoreIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(storeIDKey{}).(string); ok {
		return value
	}
	return ""
}

// WithActor stores the acting identity for log enrichment.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorValue{
		actorType: strings.TrimSpace(actorType),
		actorID:   strings.TrimSpace(actorID),
	})
}

// ActorFromContext returns the acting identity, if set.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if value, ok := ctx.Value(actorKey{}).(actorValue); ok {
		return value.actorType, value.actorID
	}
	return "", ""
}
