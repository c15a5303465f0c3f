// Package override defines admin override requests against the matching
// lifecycle. Overrides are reason-mandatory and always audited when applied.
package override

import (
	"fmt"
	"time"

	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/agentprofile"
)

// Action is the closed enumeration of admin override actions.
type Action string

const (
	ActionForceMatch      Action = "force_match"
	ActionCancelMatching  Action = "cancel_matching"
	ActionExtendTimeout   Action = "extend_timeout"
	ActionRestartMatching Action = "restart_matching"
)

// MinReasonLength is the default lower bound on the override reason. The
// configured value may raise it but never lower it below this floor.
const MinReasonLength = 10

// Override is a manually triggered, reason-mandatory deviation from the
// automatic matching flow.
type Override struct {
	AdminID      string                 `json:"admin_id"`
	Action       Action                 `json:"action"`
	Reason       string                 `json:"reason"`
	TargetAgents []agentprofile.AgentID `json:"target_agents,omitempty"`
	NewTimeout   time.Duration          `json:"new_timeout,omitempty"`
	RequestedAt  time.Time              `json:"requested_at"`
}

// Validate checks structural validity. State compatibility is checked
// separately against the live request by the matching engine.
func (o *Override) Validate(minReasonLen int) error {
	if minReasonLen < MinReasonLength {
		minReasonLen = MinReasonLength
	}
	if o.AdminID == "" {
		return fmt.Errorf("%w: admin_id is required", domain.ErrValidation)
	}
	switch o.Action {
	case ActionForceMatch, ActionCancelMatching, ActionExtendTimeout, ActionRestartMatching:
	default:
		return fmt.Errorf("%w: unknown override action %q", domain.ErrValidation, o.Action)
	}
	if len(o.Reason) < minReasonLen {
		return fmt.Errorf("%w: reason must be at least %d characters", domain.ErrValidation, minReasonLen)
	}
	if o.Action == ActionForceMatch && len(o.TargetAgents) == 0 {
		return fmt.Errorf("%w: force_match requires at least one target agent", domain.ErrValidation)
	}
	if o.Action == ActionExtendTimeout && o.NewTimeout <= 0 {
		return fmt.Errorf("%w: extend_timeout requires a positive new_timeout", domain.ErrValidation)
	}
	return nil
}
