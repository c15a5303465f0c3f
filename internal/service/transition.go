package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wandero/matching/internal/adapter/ws"
	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/audit"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/logger"
)

// transitionRequest is the single choke point for request status changes.
// Every transition, automatic or admin-driven, passes the legality check,
// the version guard, the audit trail, and the event publication here.
func (s *MatchingService) transitionRequest(ctx context.Context, req *travelrequest.TravelRequest, to travelrequest.Status) error {
	return s.transitionRequestAs(ctx, req, to, audit.SystemActor, "")
}

// transitionRequestAs is transitionRequest with an explicit actor and reason,
// used by admin overrides.
func (s *MatchingService) transitionRequestAs(ctx context.Context, req *travelrequest.TravelRequest, to travelrequest.Status, actor, reason string) error {
	from := req.Status
	if !travelrequest.CanTransition(from, to) {
		return fmt.Errorf("request %s: %s -> %s: %w", req.ID, from, to, domain.ErrInvalidTransition)
	}

	if err := s.store.TransitionRequest(ctx, req.ID, to, req.Version); err != nil {
		return err
	}
	req.Status = to
	req.Version++
	if to == travelrequest.StatusMatchingInProgress && req.MatchingStartedAt == nil {
		now := s.now()
		req.MatchingStartedAt = &now
	}

	s.auditTransition(ctx, req, from, to, actor, reason)
	s.publishLifecycle(ctx, req, to)
	s.recordOutcomeMetric(ctx, to)

	s.hub.BroadcastEvent(ctx, ws.EventRequestStatus, ws.RequestStatusEvent{
		RequestID: string(req.ID),
		Status:    string(to),
		Attempt:   req.Attempt,
	})

	slog.InfoContext(ctx, "request transitioned",
		"request_id", req.ID, "from", from, "to", to, "actor", actor)
	return nil
}

// auditTransition records terminal outcomes and all admin-driven changes.
// Routine intermediate hops by the system stay out of the audit trail.
func (s *MatchingService) auditTransition(ctx context.Context, req *travelrequest.TravelRequest, from, to travelrequest.Status, actor, reason string) {
	if actor == audit.SystemActor && !to.Terminal() {
		return
	}

	category := audit.CategoryMatching
	severity := audit.SeverityInfo
	if actor != audit.SystemActor {
		category = audit.CategoryAdminOverride
		severity = audit.SeverityWarning
	}
	if to == travelrequest.StatusMatchingFailed {
		severity = audit.SeverityCritical
	}

	entry := &audit.Entry{
		ID:            uuid.NewString(),
		Category:      category,
		Severity:      severity,
		Actor:         actor,
		Resource:      "request/" + string(req.ID),
		Action:        fmt.Sprintf("transition %s -> %s", from, to),
		Reason:        reason,
		BeforeState:   string(from),
		AfterState:    string(to),
		RequestID:     req.ID,
		CorrelationID: logger.CorrelationID(ctx),
		CreatedAt:     s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "audit record failed",
			"request_id", req.ID, "action", entry.Action, "error", err)
	}
}

// transitionMatch resolves a proposed match exactly once. Losing the version
// race returns domain.ErrConflict untouched so callers can tell a settled
// race from a real failure.
func (s *MatchingService) transitionMatch(ctx context.Context, m *match.Match, to match.Status) error {
	if m.Status.Resolved() {
		return fmt.Errorf("match %s already %s: %w", m.ID, m.Status, domain.ErrInvalidTransition)
	}

	if err := s.store.TransitionMatch(ctx, m.ID, to, m.Version); err != nil {
		return err
	}
	m.Status = to
	m.Version++
	now := s.now()
	m.ResolvedAt = &now

	s.hub.BroadcastEvent(ctx, ws.EventMatchStatus, ws.MatchStatusEvent{
		MatchID:   string(m.ID),
		RequestID: string(m.RequestID),
		Status:    string(to),
		Score:     m.Score,
	})

	slog.InfoContext(ctx, "match resolved",
		"match_id", m.ID, "request_id", m.RequestID, "status", to)
	return nil
}

// extendDeadlineAudited pushes the request deadline and records the override.
func (s *MatchingService) extendDeadlineAudited(ctx context.Context, req *travelrequest.TravelRequest, deadline time.Time, actor, reason string) error {
	before := req.Deadline
	if err := s.store.ExtendDeadline(ctx, req.ID, deadline, req.Version); err != nil {
		return err
	}
	req.Deadline = deadline
	req.Version++

	entry := &audit.Entry{
		ID:            uuid.NewString(),
		Category:      audit.CategoryAdminOverride,
		Severity:      audit.SeverityWarning,
		Actor:         actor,
		Resource:      "request/" + string(req.ID),
		Action:        "extend_timeout",
		Reason:        reason,
		BeforeState:   before.Format(time.RFC3339),
		AfterState:    deadline.Format(time.RFC3339),
		RequestID:     req.ID,
		CorrelationID: logger.CorrelationID(ctx),
		CreatedAt:     s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "audit record failed",
			"request_id", req.ID, "action", entry.Action, "error", err)
	}
	return nil
}
