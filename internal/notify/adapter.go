// Package notify posts build-service events to chat platforms.
package notify

import "context"

// Adapter is the interface that platform-specific implementations must
// satisfy. Adapters are outbound-only: the service announces, it does not
// converse.
type Adapter interface {
	// Post delivers one event to the platform.
	Post(ctx context.Context, evt Event) error

	// Close releases the platform connection.
	Close() error
}

// Event is a platform-neutral notification.
type Event struct {
	Title    string
	Body     string
	Severity string // "info", "success", "error"
	Fields   []Field
}

// Field is a key-value pair displayed with an event.
type Field struct {
	Name  string
	Value string
}
