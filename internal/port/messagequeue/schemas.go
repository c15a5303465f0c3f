package messagequeue

import "encoding/json"

// MatchingRequestedPayload is the schema for matching.requested messages.
type MatchingRequestedPayload struct {
	RequestID     string `json:"request_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// LifecycleEventPayload is the schema for all matching.* lifecycle subjects.
// The inner payload mirrors the event package's typed payloads.
type LifecycleEventPayload struct {
	Type          string          `json:"type"`
	RequestID     string          `json:"request_id"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	EmittedAt     string          `json:"emitted_at"`
}

// MatchResolutionPayload is the schema for match.declined / match.timed_out.
type MatchResolutionPayload struct {
	Type          string          `json:"type"`
	RequestID     string          `json:"request_id"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	EmittedAt     string          `json:"emitted_at"`
}
