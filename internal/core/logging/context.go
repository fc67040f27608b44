package logging

import "context"

type contextKey string

const (
	formIDKey  contextKey = "form_id"
	channelKey contextKey = "channel"
	tickIDKey  contextKey = "tick_id"
)

// WithFormID adds a form ID to the context.
func WithFormID(ctx context.Context, formID string) context.Context {
	return context.WithValue(ctx, formIDKey, formID)
}

// WithChannel adds a channel ID to the context.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey, channel)
}

// WithTickID adds a scheduler tick ID to the context.
func WithTickID(ctx context.Context, tickID string) context.Context {
	return context.WithValue(ctx, tickIDKey, tickID)
}

// GetFormID retrieves the form ID from the context.
// Returns empty string if not present.
func GetFormID(ctx context.Context) string {
	return getString(ctx, formIDKey)
}

// GetChannel retrieves the channel ID from the context.
// Returns empty string if not present.
func GetChannel(ctx context.Context) string {
	return getString(ctx, channelKey)
}

// GetTickID retrieves the tick ID from the context.
// Returns empty string if not present.
func GetTickID(ctx context.Context) string {
	return getString(ctx, tickIDKey)
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
