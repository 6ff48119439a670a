package actorcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type actorKey struct{}
type requestIDKey struct{}
type ipAddressKey struct{}
type userAgentKey struct{}

type actor struct {
	actorType string
	actorID   string
}

// WithActor stores the acting identity in the context. The HTTP layer sets
// this from the authenticated caller; the scheduler sets ("system", "sweep").
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		actorType: strings.TrimSpace(actorType),
		actorID:   strings.TrimSpace(actorID),
	})
}

// ActorFromContext returns the acting identity, if set.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if value, ok := ctx.Value(actorKey{}).(actor); ok {
		return value.actorType, value.actorID
	}
	return "", ""
}

// ActorUserID parses the actor ID as a snowflake user ID.
func ActorUserID(ctx context.Context) (snowflake.ID, bool) {
	_, raw := ActorFromContext(ctx)
	if raw == "" {
		return 0, false
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return parsed, true
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey{}, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(ipAddressKey{}).(string); ok {
		return value
	}
	return ""
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(userAgentKey{}).(string); ok {
		return value
	}
	return ""
}
