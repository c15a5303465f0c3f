// Package event defines the lifecycle events the engine publishes. Payloads
// carry only obfuscated agent views; full profiles never leave the engine
// before confirmation.
package event

import (
	"encoding/json"
	"time"

	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	TypeMatchingStarted   Type = "matching.started"
	TypeAgentsMatched     Type = "matching.agents_matched"
	TypeAwaitingResponse  Type = "matching.awaiting_response"
	TypeAgentConfirmed    Type = "matching.agent_confirmed"
	TypeNoAgentsAvailable Type = "matching.no_agents"
	TypeMatchingFailed    Type = "matching.failed"
	TypeExpired           Type = "matching.expired"
	TypeCancelled         Type = "matching.cancelled"
	TypeMatchDeclined     Type = "match.declined"
	TypeMatchTimedOut     Type = "match.timed_out"
)

// Event is the envelope published to the event collaborator. CorrelationID is
// propagated from the triggering request on every emission.
type Event struct {
	Type          Type                    `json:"type"`
	RequestID     travelrequest.RequestID `json:"request_id"`
	CorrelationID string                  `json:"correlation_id"`
	Payload       json.RawMessage         `json:"payload,omitempty"`
	EmittedAt     time.Time               `json:"emitted_at"`
}

// ProposedMatch is the external (obfuscated) projection of a match.
type ProposedMatch struct {
	MatchID   match.MatchID           `json:"match_id"`
	Agent     agentprofile.Obfuscated `json:"agent"`
	Score     float64                 `json:"score"`
	Reasons   []string                `json:"reasons,omitempty"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// MatchedPayload is the payload for agents_matched / awaiting_response events.
type MatchedPayload struct {
	Matches    []ProposedMatch `json:"matches"`
	StarCount  int             `json:"star_count"`
	BenchCount int             `json:"bench_count"`
	Attempt    int             `json:"attempt"`
}

// ConfirmedPayload is the payload for agent_confirmed events.
type ConfirmedPayload struct {
	MatchID match.MatchID           `json:"match_id"`
	Agent   agentprofile.Obfuscated `json:"agent"`
}

// OutcomePayload is the payload for terminal non-confirmed outcomes.
type OutcomePayload struct {
	Status  travelrequest.Status `json:"status"`
	Reason  string               `json:"reason,omitempty"`
	Attempt int                  `json:"attempt"`
}

// DeclinePayload is the payload for match.declined / match.timed_out events.
type DeclinePayload struct {
	MatchID match.MatchID       `json:"match_id"`
	Reason  match.DeclineReason `json:"reason"`
}
