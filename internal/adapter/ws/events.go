package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/wandero/matching/internal/domain/agentprofile"
)

// Event type constants for WebSocket messages.
const (
	EventRequestStatus = "request.status"
	EventMatchStatus   = "match.status"
)

// RequestStatusEvent is broadcast when a travel request changes status.
type RequestStatusEvent struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Attempt   int    `json:"attempt"`
}

// MatchStatusEvent is broadcast when a proposed match resolves. The agent
// view is obfuscated; full identity never crosses this boundary.
type MatchStatusEvent struct {
	MatchID   string                   `json:"match_id"`
	RequestID string                   `json:"request_id"`
	Status    string                   `json:"status"`
	Score     float64                  `json:"score"`
	Agent     *agentprofile.Obfuscated `json:"agent,omitempty"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
