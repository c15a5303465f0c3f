// Package matchstore defines the persistence port for travel requests,
// matches, and decline records.
package matchstore

import (
	"context"
	"time"

	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

// Store is the port interface for matching-engine persistence. All status
// mutations are compare-and-swap on the entity's version column and return
// domain.ErrConflict when another writer got there first — that conflict is
// how accept/timeout races resolve to exactly one committed outcome.
type Store interface {
	// Requests
	CreateRequest(ctx context.Context, req *travelrequest.TravelRequest, c *criteria.Criteria) error
	GetRequest(ctx context.Context, id travelrequest.RequestID) (*travelrequest.TravelRequest, error)
	GetCriteria(ctx context.Context, id travelrequest.RequestID) (*criteria.Criteria, error)
	// TransitionRequest moves the request to the given status iff the stored
	// version matches. It bumps the version and updated_at.
	TransitionRequest(ctx context.Context, id travelrequest.RequestID, to travelrequest.Status, version int) error
	// RequeueRequest atomically re-enters matching_in_progress and increments
	// the attempt counter, guarded by version.
	RequeueRequest(ctx context.Context, id travelrequest.RequestID, version int) error
	// ExtendDeadline pushes the request-level deadline, guarded by version.
	ExtendDeadline(ctx context.Context, id travelrequest.RequestID, deadline time.Time, version int) error
	// ListRequestsPastDeadline returns non-terminal requests whose deadline
	// has passed, for the expiry sweep.
	ListRequestsPastDeadline(ctx context.Context, now time.Time, limit int) ([]travelrequest.TravelRequest, error)

	// Matches
	CreateMatches(ctx context.Context, matches []match.Match) error
	GetMatch(ctx context.Context, id match.MatchID) (*match.Match, error)
	ListMatchesByRequest(ctx context.Context, id travelrequest.RequestID) ([]match.Match, error)
	// TransitionMatch resolves a proposed match, guarded by version. A match
	// resolves exactly once; concurrent resolutions lose with ErrConflict.
	TransitionMatch(ctx context.Context, id match.MatchID, to match.Status, version int) error
	// ExtendMatchExpiry pushes the response window of an outstanding match.
	ExtendMatchExpiry(ctx context.Context, id match.MatchID, expiresAt time.Time, version int) error
	// ListExpiredMatches returns still-proposed matches whose response window
	// has passed, for the expiry sweep.
	ListExpiredMatches(ctx context.Context, now time.Time, limit int) ([]match.Match, error)

	// Declines
	RecordDecline(ctx context.Context, d *match.Decline) error
	DeclinedAgents(ctx context.Context, id travelrequest.RequestID) ([]agentprofile.AgentID, error)
}
