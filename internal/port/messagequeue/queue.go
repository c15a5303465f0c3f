// Package messagequeue defines the message queue port (interface) and the
// subjects the matching engine publishes and consumes.
package messagequeue

import "context"

// Handler processes a message received from the queue. The context carries
// request-scoped values such as the correlation ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for the matching engine.
const (
	// SubjectMatchingRequested triggers a matching run for a request.
	// Published by the intake API, consumed by the engine.
	SubjectMatchingRequested = "matching.requested"

	// Lifecycle outcomes, published by the engine. Payloads carry only
	// obfuscated agent views.
	SubjectMatchingStarted   = "matching.started"
	SubjectAgentsMatched     = "matching.agents_matched"
	SubjectAwaitingResponse  = "matching.awaiting_response"
	SubjectAgentConfirmed    = "matching.agent_confirmed"
	SubjectNoAgentsAvailable = "matching.no_agents"
	SubjectMatchingFailed    = "matching.failed"
	SubjectExpired           = "matching.expired"
	SubjectCancelled         = "matching.cancelled"

	// Per-match resolutions.
	SubjectMatchDeclined = "match.declined"
	SubjectMatchTimedOut = "match.timed_out"
)
