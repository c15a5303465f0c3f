// Package agentdirectory defines the port for the external agent repository.
//
// The directory is read-only for profile data. The engine owns only the
// workload counter, which it adjusts under optimistic concurrency because
// multiple requests may compete for the same agent.
package agentdirectory

import (
	"context"

	"github.com/wandero/matching/internal/domain/agentprofile"
)

// Query filters the candidate pool before scoring.
type Query struct {
	Regions         []string `json:"regions,omitempty"`
	Specializations []string `json:"specializations,omitempty"`
	AvailableOnly   bool     `json:"available_only"`
}

// Directory is the port interface for the agent repository.
type Directory interface {
	// FindCandidates returns profiles matching the query. The returned data
	// must never cross the trust boundary unobfuscated.
	FindCandidates(ctx context.Context, q Query) ([]agentprofile.Profile, error)

	// Get returns a single profile by ID.
	Get(ctx context.Context, id agentprofile.AgentID) (*agentprofile.Profile, error)

	// AdjustWorkload applies delta to the agent's current workload, but only
	// if the stored version still equals the given version. Returns
	// domain.ErrConflict when the version check fails; the caller must
	// re-read and retry.
	AdjustWorkload(ctx context.Context, id agentprofile.AgentID, delta, version int) error
}
