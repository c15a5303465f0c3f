package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	motel "github.com/wandero/matching/internal/adapter/otel"
	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/port/messagequeue"
)

// HandleAccept processes an agent accepting a proposed match. The first
// accept wins: the match flips to accepted, the request confirms, and every
// sibling proposal is invalidated. A second accept, or an accept racing a
// timeout, loses the version guard and surfaces domain.ErrConflict.
func (s *MatchingService) HandleAccept(ctx context.Context, matchID match.MatchID, agentID agentprofile.AgentID) (*match.Match, error) {
	ctx, span := motel.StartDecisionSpan(ctx, string(matchID), "accept")
	defer span.End()

	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.AgentID != agentID {
		return nil, fmt.Errorf("%w: match %s does not belong to agent %s", domain.ErrValidation, matchID, agentID)
	}

	unlock := s.lockRequest(m.RequestID)
	defer unlock()

	req, err := s.store.GetRequest(ctx, m.RequestID)
	if err != nil {
		return nil, err
	}

	if req.Status != travelrequest.StatusAgentsMatched && req.Status != travelrequest.StatusAwaitingResponse {
		return nil, fmt.Errorf("accept on request in %s: %w", req.Status, domain.ErrInvalidTransition)
	}
	// The request deadline outranks the per-match window: an accept landing
	// past it expires the request instead of confirming it.
	if !req.Deadline.After(s.now()) {
		s.expireLocked(ctx, req)
		return nil, fmt.Errorf("accept after request deadline: %w", domain.ErrInvalidTransition)
	}
	if m.Expired(s.now()) {
		return nil, fmt.Errorf("accept after response window: %w", domain.ErrInvalidTransition)
	}

	if err := s.transitionMatch(ctx, m, match.StatusAccepted); err != nil {
		return nil, err
	}

	if err := s.transitionRequest(ctx, req, travelrequest.StatusAgentConfirmed); err != nil {
		return nil, err
	}

	s.invalidateSiblings(ctx, req.ID, m.ID)
	s.incrementWorkload(ctx, agentID)
	s.publishConfirmed(ctx, m)

	if s.metrics != nil {
		s.metrics.MatchesAccepted.Add(ctx, 1)
	}

	slog.InfoContext(ctx, "match accepted",
		"match_id", m.ID, "request_id", req.ID, "agent_id", agentID)
	return m, nil
}

// HandleDecline processes an agent declining a proposed match. Once every
// proposal on the request is resolved without an accept, the request either
// requeues for another round or fails when the attempt budget is spent.
func (s *MatchingService) HandleDecline(ctx context.Context, matchID match.MatchID, agentID agentprofile.AgentID, reason match.DeclineReason, note string) error {
	ctx, span := motel.StartDecisionSpan(ctx, string(matchID), "decline")
	defer span.End()

	if !match.ValidDeclineReason(reason) {
		return fmt.Errorf("%w: unknown decline reason %q", domain.ErrValidation, reason)
	}

	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.AgentID != agentID {
		return fmt.Errorf("%w: match %s does not belong to agent %s", domain.ErrValidation, matchID, agentID)
	}

	unlock := s.lockRequest(m.RequestID)
	defer unlock()

	if err := s.transitionMatch(ctx, m, match.StatusDeclined); err != nil {
		return err
	}

	decline := &match.Decline{
		MatchID:   m.ID,
		RequestID: m.RequestID,
		AgentID:   agentID,
		Reason:    reason,
		Note:      note,
		CreatedAt: s.now(),
	}
	if err := s.store.RecordDecline(ctx, decline); err != nil {
		return err
	}

	s.publishMatchResolution(ctx, m, reason)
	if s.metrics != nil {
		s.metrics.MatchesDeclined.Add(ctx, 1)
	}

	slog.InfoContext(ctx, "match declined",
		"match_id", m.ID, "request_id", m.RequestID, "agent_id", agentID, "reason", reason)

	return s.settleIfExhausted(ctx, m.RequestID)
}

// settleIfExhausted checks whether all proposals on the request are resolved
// without an accept, and if so either requeues another matching round or
// fails the request when the attempt budget is spent. Callers must hold the
// request lock.
func (s *MatchingService) settleIfExhausted(ctx context.Context, id travelrequest.RequestID) error {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != travelrequest.StatusAwaitingResponse && req.Status != travelrequest.StatusAgentsMatched {
		return nil
	}

	matches, err := s.store.ListMatchesByRequest(ctx, id)
	if err != nil {
		return err
	}
	for _, m := range matches {
		switch m.Status {
		case match.StatusAccepted:
			return nil // confirmed elsewhere
		case match.StatusProposed:
			return nil // still waiting on responses
		}
	}

	// Attempt count is 0-based: attempt 0 is the first round, so the budget
	// is spent when attempt+1 reaches MaxAttempts.
	if req.Attempt+1 >= s.cfg.MaxAttempts {
		if err := s.transitionRequest(ctx, req, travelrequest.StatusMatchingFailed); err != nil {
			return err
		}
		s.alert(ctx, "Matching failed",
			fmt.Sprintf("request %s exhausted %d matching attempts", req.ID, s.cfg.MaxAttempts),
			"error", "matching.failed")
		return nil
	}

	return s.requeue(ctx, req)
}

// requeue re-enters matching_in_progress with attempt+1 and publishes the
// trigger so the next round runs through the queue like any other.
func (s *MatchingService) requeue(ctx context.Context, req *travelrequest.TravelRequest) error {
	if !travelrequest.CanTransition(req.Status, travelrequest.StatusMatchingInProgress) {
		return fmt.Errorf("requeue request %s in %s: %w", req.ID, req.Status, domain.ErrInvalidTransition)
	}
	if err := s.store.RequeueRequest(ctx, req.ID, req.Version); err != nil {
		return err
	}
	req.Status = travelrequest.StatusMatchingInProgress
	req.Attempt++
	req.Version++

	s.publishLifecycle(ctx, req, travelrequest.StatusMatchingInProgress)

	trigger, err := json.Marshal(messagequeue.MatchingRequestedPayload{
		RequestID: string(req.ID),
	})
	if err != nil {
		return fmt.Errorf("marshal requeue trigger: %w", err)
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectMatchingRequested, trigger); err != nil {
		// The request sits in matching_in_progress until retriggered; log
		// loudly so operators can restart it.
		slog.ErrorContext(ctx, "requeue trigger publish failed",
			"request_id", req.ID, "attempt", req.Attempt, "error", err)
	}

	slog.InfoContext(ctx, "request requeued for another matching round",
		"request_id", req.ID, "attempt", req.Attempt)
	return nil
}

// invalidateSiblings resolves all still-proposed matches on the request as
// invalidated. Races with concurrent resolutions are fine: whoever wins the
// version guard settles the match.
func (s *MatchingService) invalidateSiblings(ctx context.Context, id travelrequest.RequestID, winner match.MatchID) {
	matches, err := s.store.ListMatchesByRequest(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "list siblings failed", "request_id", id, "error", err)
		return
	}
	for i := range matches {
		m := &matches[i]
		if m.ID == winner || m.Status.Resolved() {
			continue
		}
		if err := s.transitionMatch(ctx, m, match.StatusInvalidated); err != nil && !errors.Is(err, domain.ErrConflict) {
			slog.ErrorContext(ctx, "invalidate sibling failed",
				"match_id", m.ID, "request_id", id, "error", err)
		}
	}
}

// incrementWorkload bumps the confirmed agent's workload counter, retrying
// version conflicts a bounded number of times.
func (s *MatchingService) incrementWorkload(ctx context.Context, agentID agentprofile.AgentID) {
	for attempt := 0; attempt <= s.cfg.WorkloadRetries; attempt++ {
		p, err := s.directory.Get(ctx, agentID)
		if err != nil {
			slog.ErrorContext(ctx, "workload read failed", "agent_id", agentID, "error", err)
			return
		}
		err = s.directory.AdjustWorkload(ctx, agentID, 1, p.Version)
		if err == nil {
			return
		}
		if !errors.Is(err, domain.ErrConflict) {
			slog.ErrorContext(ctx, "workload adjust failed", "agent_id", agentID, "error", err)
			return
		}
	}
	slog.ErrorContext(ctx, "workload adjust gave up after retries",
		"agent_id", agentID, "retries", s.cfg.WorkloadRetries)
}
