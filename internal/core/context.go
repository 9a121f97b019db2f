package core

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request-id"
	featureKey   contextKey = "feature"
)

// WithRequestID returns a new context with the request ID attached.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithFeature tags the context with the feature being served.
func WithFeature(ctx context.Context, feature string) context.Context {
	return context.WithValue(ctx, featureKey, feature)
}

// GetFeature returns the feature tag, or "".
func GetFeature(ctx context.Context) string {
	f, _ := ctx.Value(featureKey).(string)
	return f
}
