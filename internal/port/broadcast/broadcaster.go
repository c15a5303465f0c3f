// Package broadcast defines the port for pushing real-time status events to
// connected ops consoles.
package broadcast

import "context"

// Broadcaster sends real-time events to all connected clients. Payloads must
// contain only obfuscated agent views.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
