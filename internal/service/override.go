package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/override"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/port/messagequeue"
)

// ApplyOverride executes an admin override against a request. Validation and
// state compatibility are checked before any mutation: an override that does
// not apply leaves the request untouched and produces no audit entry. Every
// applied override is audited with the admin identity and reason.
func (s *MatchingService) ApplyOverride(ctx context.Context, id travelrequest.RequestID, o *override.Override) error {
	if err := o.Validate(s.cfg.MinReasonLength); err != nil {
		return err
	}

	unlock := s.lockRequest(id)
	defer unlock()

	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}

	switch o.Action {
	case override.ActionForceMatch:
		return s.forceMatch(ctx, req, o)
	case override.ActionCancelMatching:
		return s.cancelMatching(ctx, req, o.AdminID, o.Reason)
	case override.ActionExtendTimeout:
		return s.extendTimeout(ctx, req, o)
	case override.ActionRestartMatching:
		return s.restartMatching(ctx, req, o)
	default:
		return fmt.Errorf("%w: unknown override action %q", domain.ErrValidation, o.Action)
	}
}

// forceMatch assigns the first target agent directly and confirms the
// request, bypassing scoring and selection. Remaining proposals invalidate.
func (s *MatchingService) forceMatch(ctx context.Context, req *travelrequest.TravelRequest, o *override.Override) error {
	// Check reachability of agent_confirmed before touching anything.
	from := req.Status
	reachable := travelrequest.CanTransition(from, travelrequest.StatusAgentConfirmed) ||
		(from == travelrequest.StatusPending &&
			travelrequest.CanTransition(travelrequest.StatusMatchingInProgress, travelrequest.StatusAgentConfirmed))
	if !reachable {
		return fmt.Errorf("force_match on request in %s: %w", from, domain.ErrInvalidTransition)
	}

	agentID := o.TargetAgents[0]
	profile, err := s.directory.Get(ctx, agentID)
	if err != nil {
		return fmt.Errorf("force_match target %s: %w", agentID, err)
	}

	now := s.now()
	forced := match.Match{
		ID:        match.MatchID(uuid.NewString()),
		RequestID: req.ID,
		AgentID:   profile.ID,
		Tier:      profile.Tier,
		Score:     1.0,
		Reasons:   []string{"assigned by admin override"},
		Status:    match.StatusProposed,
		MatchedAt: now,
		ExpiresAt: now.Add(s.cfg.ResponseWindow),
	}
	if err := s.store.CreateMatches(ctx, []match.Match{forced}); err != nil {
		return fmt.Errorf("persist forced match: %w", err)
	}

	if req.Status == travelrequest.StatusPending {
		if err := s.transitionRequestAs(ctx, req, travelrequest.StatusMatchingInProgress, o.AdminID, o.Reason); err != nil {
			return err
		}
	}
	if err := s.transitionMatch(ctx, &forced, match.StatusAccepted); err != nil {
		return err
	}
	if err := s.transitionRequestAs(ctx, req, travelrequest.StatusAgentConfirmed, o.AdminID, o.Reason); err != nil {
		return err
	}

	s.invalidateSiblings(ctx, req.ID, forced.ID)
	s.incrementWorkload(ctx, profile.ID)
	s.publishConfirmed(ctx, &forced)

	slog.InfoContext(ctx, "admin force match applied",
		"request_id", req.ID, "agent_id", profile.ID, "admin_id", o.AdminID)
	return nil
}

// cancelMatching moves the request to cancelled and invalidates outstanding
// proposals. Also serves user-initiated cancellation, with the user as actor.
func (s *MatchingService) cancelMatching(ctx context.Context, req *travelrequest.TravelRequest, actor, reason string) error {
	if err := s.transitionRequestAs(ctx, req, travelrequest.StatusCancelled, actor, reason); err != nil {
		return err
	}
	s.invalidateSiblings(ctx, req.ID, "")

	slog.InfoContext(ctx, "matching cancelled", "request_id", req.ID, "actor", actor)
	return nil
}

// Cancel cancels matching on behalf of the requesting user.
func (s *MatchingService) Cancel(ctx context.Context, id travelrequest.RequestID, actor, reason string) error {
	unlock := s.lockRequest(id)
	defer unlock()

	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	return s.cancelMatching(ctx, req, actor, reason)
}

// extendTimeout pushes the request deadline and every outstanding proposal's
// response window to now + NewTimeout.
func (s *MatchingService) extendTimeout(ctx context.Context, req *travelrequest.TravelRequest, o *override.Override) error {
	if req.Status.Terminal() {
		return fmt.Errorf("extend_timeout on request in %s: %w", req.Status, domain.ErrInvalidTransition)
	}

	newDeadline := s.now().Add(o.NewTimeout)
	if err := s.extendDeadlineAudited(ctx, req, newDeadline, o.AdminID, o.Reason); err != nil {
		return err
	}

	matches, err := s.store.ListMatchesByRequest(ctx, req.ID)
	if err != nil {
		return err
	}
	for i := range matches {
		m := &matches[i]
		if m.Status != match.StatusProposed {
			continue
		}
		if err := s.store.ExtendMatchExpiry(ctx, m.ID, newDeadline, m.Version); err != nil {
			slog.WarnContext(ctx, "extend match expiry skipped",
				"match_id", m.ID, "request_id", req.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "timeout extended",
		"request_id", req.ID, "new_deadline", newDeadline, "admin_id", o.AdminID)
	return nil
}

// restartMatching requeues a request for a fresh matching round, typically
// after no_agents_available or matching_failed. Outstanding proposals are
// invalidated first.
func (s *MatchingService) restartMatching(ctx context.Context, req *travelrequest.TravelRequest, o *override.Override) error {
	if !travelrequest.CanTransition(req.Status, travelrequest.StatusMatchingInProgress) {
		return fmt.Errorf("restart_matching on request in %s: %w", req.Status, domain.ErrInvalidTransition)
	}

	s.invalidateSiblings(ctx, req.ID, "")

	from := req.Status
	if err := s.store.RequeueRequest(ctx, req.ID, req.Version); err != nil {
		return err
	}
	req.Status = travelrequest.StatusMatchingInProgress
	req.Attempt++
	req.Version++

	s.auditTransition(ctx, req, from, travelrequest.StatusMatchingInProgress, o.AdminID, o.Reason)
	s.publishLifecycle(ctx, req, travelrequest.StatusMatchingInProgress)

	trigger, err := json.Marshal(messagequeue.MatchingRequestedPayload{
		RequestID: string(req.ID),
	})
	if err != nil {
		return fmt.Errorf("marshal restart trigger: %w", err)
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectMatchingRequested, trigger); err != nil {
		slog.ErrorContext(ctx, "restart trigger publish failed",
			"request_id", req.ID, "error", err)
	}

	slog.InfoContext(ctx, "matching restarted by admin",
		"request_id", req.ID, "attempt", req.Attempt, "admin_id", o.AdminID)
	return nil
}
