package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// ResourceKey names the path id of an API route for logs and spans:
// "offer_id" under /api/offers/:id, "participation_id" under
// /api/participations/:id, "" otherwise.
func ResourceKey(route string) string {
	switch {
	case strings.HasPrefix(route, "/api/offers/:id"):
		return "offer_id"
	case strings.HasPrefix(route, "/api/participations/:id"):
		return "participation_id"
	default:
		return ""
	}
}
