package services

import "context"

type contextKey string

const (
	itemIDKey    contextKey = "item_id"
	recordIDKey  contextKey = "record_id"
	passIDKey    contextKey = "pass_id"
	requestIDKey contextKey = "request_id"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithItemID annotates context with the queue item identifier.
func WithItemID(ctx context.Context, id string) context.Context {
	return withString(ctx, itemIDKey, id)
}

// ItemIDFromContext extracts the queue item identifier if present.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, itemIDKey)
}

// WithRecordID annotates context with the warranty record an upload targets.
func WithRecordID(ctx context.Context, id string) context.Context {
	return withString(ctx, recordIDKey, id)
}

// RecordIDFromContext returns the record identifier if present.
func RecordIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, recordIDKey)
}

// WithPassID annotates context with the sync pass identifier.
func WithPassID(ctx context.Context, id string) context.Context {
	return withString(ctx, passIDKey, id)
}

// PassIDFromContext returns the sync pass identifier if present.
func PassIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, passIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
