// Package match defines the AgentMatch pairing, decline records, and the
// per-run result snapshot.
package match

import (
	"time"

	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

// MatchID identifies a proposed pairing. Distinct from request and agent IDs.
type MatchID string

// Status is the per-match lifecycle. A match is created as proposed and is
// mutated exactly once into one of the resolved states; it is never deleted.
type Status string

const (
	StatusProposed    Status = "proposed"
	StatusAccepted    Status = "accepted"
	StatusDeclined    Status = "declined"
	StatusTimedOut    Status = "timed_out"
	StatusInvalidated Status = "invalidated"
)

// Resolved reports whether the match has reached a final state.
func (s Status) Resolved() bool {
	return s != StatusProposed
}

// Match is a proposed pairing between a travel request and an agent.
type Match struct {
	ID         MatchID                 `json:"id"`
	RequestID  travelrequest.RequestID `json:"request_id"`
	AgentID    agentprofile.AgentID    `json:"agent_id"`
	Tier       agentprofile.Tier       `json:"tier"`
	Score      float64                 `json:"score"`
	Reasons    []string                `json:"reasons,omitempty"`
	Status     Status                  `json:"status"`
	Version    int                     `json:"version"`
	MatchedAt  time.Time               `json:"matched_at"`
	ExpiresAt  time.Time               `json:"expires_at"`
	ResolvedAt *time.Time              `json:"resolved_at,omitempty"`
}

// Expired reports whether the match's response window has passed.
func (m *Match) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// DeclineReason is the closed enumeration of non-acceptance causes.
type DeclineReason string

const (
	DeclineUnavailable            DeclineReason = "agent_unavailable"
	DeclineDeclined               DeclineReason = "agent_declined"
	DeclineTimeout                DeclineReason = "agent_timeout"
	DeclineWorkloadExceeded       DeclineReason = "workload_exceeded"
	DeclineRegionMismatch         DeclineReason = "region_mismatch"
	DeclineSpecializationMismatch DeclineReason = "specialization_mismatch"
)

// ValidDeclineReason reports whether r is a member of the closed enumeration.
func ValidDeclineReason(r DeclineReason) bool {
	switch r {
	case DeclineUnavailable, DeclineDeclined, DeclineTimeout,
		DeclineWorkloadExceeded, DeclineRegionMismatch, DeclineSpecializationMismatch:
		return true
	}
	return false
}

// Decline is the immutable record of a non-acceptance.
type Decline struct {
	MatchID   MatchID                 `json:"match_id"`
	RequestID travelrequest.RequestID `json:"request_id"`
	AgentID   agentprofile.AgentID    `json:"agent_id"`
	Reason    DeclineReason           `json:"reason"`
	Note      string                  `json:"note,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// Result is the aggregate snapshot of a completed matching run.
type Result struct {
	RequestID           travelrequest.RequestID `json:"request_id"`
	Status              travelrequest.Status    `json:"status"`
	Matches             []Match                 `json:"matches"`
	StarCount           int                     `json:"star_count"`
	BenchCount          int                     `json:"bench_count"`
	CandidatesEvaluated int                     `json:"candidates_evaluated"`
	Duration            time.Duration           `json:"duration"`
	Attempt             int                     `json:"attempt"`
}
