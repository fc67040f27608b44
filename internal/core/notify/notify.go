// Package notify defines the outbound messaging boundary and the delivery log.
package notify

import "context"

// MarkerDetected is the reaction added to a message announcing a new form.
const MarkerDetected = "white_check_mark"

// Notifier posts messages and markers to a chat channel. Implementations
// carry their own timeouts; callers treat failures as non-fatal.
type Notifier interface {
	// Send posts text to channel. A non-empty thread replies in that thread.
	Send(ctx context.Context, channel, text, thread string) error
	// AddMarker attaches a visible marker (reaction) to a message.
	AddMarker(ctx context.Context, channel, messageTS, marker string) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string) error { return nil }

func (Nop) AddMarker(context.Context, string, string, string) error { return nil }
