// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Queue is the port interface for publishing settings events.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Drain flushes pending publishes and closes the connection.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects published by the settings service. All live under "settings.>".
const (
	SubjectBusinessUpdated = "settings.business.updated"
	SubjectRepUpdated      = "settings.rep.updated"
	SubjectDndEnabled      = "settings.dnd.enabled"
	SubjectDndDisabled     = "settings.dnd.disabled"
	SubjectDndExtended     = "settings.dnd.extended"
	SubjectDndExpired      = "settings.dnd.expired"
)
