package logger

import "context"

type requestIDKey struct{}

type actorIDKey struct{}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithActorID returns a new context carrying the acting user or representative id.
func WithActorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, id)
}

// ActorID extracts the actor id, or "" when none is set.
func ActorID(ctx context.Context) string {
	id, _ := ctx.Value(actorIDKey{}).(string)
	return id
}
