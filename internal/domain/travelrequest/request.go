// Package travelrequest defines the TravelRequest entity and its matching
// lifecycle status.
package travelrequest

import (
	"fmt"
	"time"

	"github.com/wandero/matching/internal/domain"
)

// RequestID identifies a travel request. Distinct from agent and match IDs.
type RequestID string

// Status is the single source of truth governing which mutations on the
// request's matches are legal.
type Status string

const (
	StatusPending            Status = "pending"
	StatusMatchingInProgress Status = "matching_in_progress"
	StatusAgentsMatched      Status = "agents_matched"
	StatusAwaitingResponse   Status = "awaiting_agent_response"
	StatusAgentConfirmed     Status = "agent_confirmed"
	StatusNoAgentsAvailable  Status = "no_agents_available"
	StatusMatchingFailed     Status = "matching_failed"
	StatusExpired            Status = "expired"
	StatusCancelled          Status = "cancelled"
)

// Terminal reports whether the status is a final outcome. Terminal states are
// first-class successful outcomes, not errors.
func (s Status) Terminal() bool {
	switch s {
	case StatusAgentConfirmed, StatusNoAgentsAvailable, StatusMatchingFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// allowed is the authoritative transition table. Every status change, whether
// automatic or admin-driven, must pass through CanTransition.
var allowed = map[Status][]Status{
	StatusPending:            {StatusMatchingInProgress, StatusCancelled, StatusExpired},
	StatusMatchingInProgress: {StatusAgentsMatched, StatusNoAgentsAvailable, StatusAgentConfirmed, StatusCancelled, StatusExpired},
	StatusAgentsMatched:      {StatusAwaitingResponse, StatusAgentConfirmed, StatusCancelled, StatusExpired},
	StatusAwaitingResponse:   {StatusAgentConfirmed, StatusMatchingInProgress, StatusMatchingFailed, StatusCancelled, StatusExpired},
	// Restart after a terminal failure is admin-only and goes back to the top.
	StatusNoAgentsAvailable: {StatusMatchingInProgress},
	StatusMatchingFailed:    {StatusMatchingInProgress},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TripType categorizes the requested trip.
type TripType string

const (
	TripLeisure   TripType = "leisure"
	TripBusiness  TripType = "business"
	TripHoneymoon TripType = "honeymoon"
	TripAdventure TripType = "adventure"
	TripGroup     TripType = "group"
)

// TravelRequest is the intake record that matching runs against. Its trip
// fields are immutable once matching starts; only Status, Attempt, Version
// and the timestamps move.
type TravelRequest struct {
	ID                RequestID  `json:"id"`
	Status            Status     `json:"status"`
	Destinations      []string   `json:"destinations"`
	TripType          TripType   `json:"trip_type"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           time.Time  `json:"end_date"`
	Travelers         int        `json:"travelers"`
	BudgetMin         float64    `json:"budget_min"`
	BudgetMax         float64    `json:"budget_max"`
	Preferences       string     `json:"preferences,omitempty"`
	Attempt           int        `json:"attempt"`
	Version           int        `json:"version"`
	MatchingStartedAt *time.Time `json:"matching_started_at,omitempty"`
	Deadline          time.Time  `json:"deadline"` // request-level expiry; takes precedence over per-match timeouts
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CreateRequest holds the fields needed to open a new travel request.
type CreateRequest struct {
	Destinations []string  `json:"destinations"`
	TripType     TripType  `json:"trip_type"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Travelers    int       `json:"travelers"`
	BudgetMin    float64   `json:"budget_min"`
	BudgetMax    float64   `json:"budget_max"`
	Preferences  string    `json:"preferences,omitempty"`
}

// Validate checks the intake invariants.
func (r *CreateRequest) Validate() error {
	if len(r.Destinations) == 0 {
		return fmt.Errorf("%w: at least one destination is required", domain.ErrValidation)
	}
	if r.Travelers <= 0 {
		return fmt.Errorf("%w: travelers must be positive", domain.ErrValidation)
	}
	if r.BudgetMin < 0 {
		return fmt.Errorf("%w: budget_min must not be negative", domain.ErrValidation)
	}
	if r.BudgetMax < r.BudgetMin {
		return fmt.Errorf("%w: budget_max must be >= budget_min", domain.ErrValidation)
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return fmt.Errorf("%w: end_date must not precede start_date", domain.ErrValidation)
	}
	switch r.TripType {
	case TripLeisure, TripBusiness, TripHoneymoon, TripAdventure, TripGroup:
	default:
		return fmt.Errorf("%w: unknown trip_type %q", domain.ErrValidation, r.TripType)
	}
	return nil
}
