// Package bus defines the optional shared-state and messaging capability
// injected into step contexts, plus an in-process implementation.
//
// The engine itself never depends on a bus being present; it only threads
// the capability through to hooks and actions so cooperating actions can
// exchange data or wait on each other.
package bus

import (
	"time"
)

// Message is a single payload published on the bus.
type Message struct {
	Type    string
	Payload any
	// Target optionally addresses one consumer; empty means broadcast.
	Target string
	Sent   time.Time
}

// Handler consumes published messages.
type Handler func(Message)

// Bus is the narrow messaging and shared-state contract actions and hooks
// may use during a run.
type Bus interface {
	// SendMessage publishes a message of the given type. Target is
	// advisory; subscribers filter on it if they care.
	SendMessage(msgType string, payload any, target string) error

	// GetSharedData reads a key from the shared scratch space.
	GetSharedData(key string) (any, bool)

	// SetSharedData writes a key into the shared scratch space.
	SetSharedData(key string, value any)

	// WaitForAction blocks until a state is recorded for the given action
	// id or the timeout elapses.
	WaitForAction(actionID string, timeout time.Duration) (string, error)

	// SubscribeToMessages registers a handler for a message type and
	// returns a function that removes the subscription.
	SubscribeToMessages(msgType string, handler Handler) (unsubscribe func())
}
