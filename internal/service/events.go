package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/wandero/matching/internal/domain/event"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/logger"
	"github.com/wandero/matching/internal/port/messagequeue"
)

// lifecycleSubjects maps a request status to the event type and queue subject
// it publishes. Statuses absent here emit through a dedicated publisher:
// agents_matched carries the full obfuscated slate via publishMatched, and
// agent_confirmed carries the winning agent via publishConfirmed.
var lifecycleSubjects = map[travelrequest.Status]struct {
	typ     event.Type
	subject string
}{
	travelrequest.StatusMatchingInProgress: {event.TypeMatchingStarted, messagequeue.SubjectMatchingStarted},
	travelrequest.StatusAwaitingResponse:   {event.TypeAwaitingResponse, messagequeue.SubjectAwaitingResponse},
	travelrequest.StatusNoAgentsAvailable:  {event.TypeNoAgentsAvailable, messagequeue.SubjectNoAgentsAvailable},
	travelrequest.StatusMatchingFailed:     {event.TypeMatchingFailed, messagequeue.SubjectMatchingFailed},
	travelrequest.StatusExpired:            {event.TypeExpired, messagequeue.SubjectExpired},
	travelrequest.StatusCancelled:          {event.TypeCancelled, messagequeue.SubjectCancelled},
}

// publishLifecycle emits the event for a request status change. Publish
// failures are logged, never propagated: the store is the source of truth
// and the queue is at-least-once downstream of it.
func (s *MatchingService) publishLifecycle(ctx context.Context, req *travelrequest.TravelRequest, to travelrequest.Status) {
	dest, ok := lifecycleSubjects[to]
	if !ok {
		return
	}

	payload, err := json.Marshal(event.OutcomePayload{
		Status:  to,
		Attempt: req.Attempt,
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal lifecycle payload", "request_id", req.ID, "error", err)
		return
	}
	s.publishEvent(ctx, dest.subject, event.Event{
		Type:      dest.typ,
		RequestID: req.ID,
		Payload:   payload,
	})
}

// publishMatched emits agents_matched with the obfuscated proposal slate.
func (s *MatchingService) publishMatched(ctx context.Context, req *travelrequest.TravelRequest, matches []match.Match, result *match.Result) {
	proposed := make([]event.ProposedMatch, 0, len(matches))
	for _, m := range matches {
		pm := event.ProposedMatch{
			MatchID:   m.ID,
			Score:     m.Score,
			Reasons:   m.Reasons,
			ExpiresAt: m.ExpiresAt,
		}
		if p, err := s.directory.Get(ctx, m.AgentID); err == nil {
			pm.Agent = p.Obfuscate()
		}
		proposed = append(proposed, pm)
	}

	payload, err := json.Marshal(event.MatchedPayload{
		Matches:    proposed,
		StarCount:  result.StarCount,
		BenchCount: result.BenchCount,
		Attempt:    req.Attempt,
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal matched payload", "request_id", req.ID, "error", err)
		return
	}
	s.publishEvent(ctx, messagequeue.SubjectAgentsMatched, event.Event{
		Type:      event.TypeAgentsMatched,
		RequestID: req.ID,
		Payload:   payload,
	})
}

// publishConfirmed emits agent_confirmed with the winning agent's obfuscated view.
func (s *MatchingService) publishConfirmed(ctx context.Context, m *match.Match) {
	confirmed := event.ConfirmedPayload{MatchID: m.ID}
	if p, err := s.directory.Get(ctx, m.AgentID); err == nil {
		confirmed.Agent = p.Obfuscate()
	}

	payload, err := json.Marshal(confirmed)
	if err != nil {
		slog.ErrorContext(ctx, "marshal confirmed payload", "request_id", m.RequestID, "error", err)
		return
	}
	s.publishEvent(ctx, messagequeue.SubjectAgentConfirmed, event.Event{
		Type:      event.TypeAgentConfirmed,
		RequestID: m.RequestID,
		Payload:   payload,
	})
}

// publishMatchResolution emits match.declined or match.timed_out.
func (s *MatchingService) publishMatchResolution(ctx context.Context, m *match.Match, reason match.DeclineReason) {
	typ, subject := event.TypeMatchDeclined, messagequeue.SubjectMatchDeclined
	if reason == match.DeclineTimeout {
		typ, subject = event.TypeMatchTimedOut, messagequeue.SubjectMatchTimedOut
	}

	payload, err := json.Marshal(event.DeclinePayload{
		MatchID: m.ID,
		Reason:  reason,
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal resolution payload", "match_id", m.ID, "error", err)
		return
	}
	s.publishEvent(ctx, subject, event.Event{
		Type:      typ,
		RequestID: m.RequestID,
		Payload:   payload,
	})
}

func (s *MatchingService) publishEvent(ctx context.Context, subject string, ev event.Event) {
	ev.CorrelationID = logger.CorrelationID(ctx)
	ev.EmittedAt = s.now()

	data, err := json.Marshal(ev)
	if err != nil {
		slog.ErrorContext(ctx, "marshal event", "type", ev.Type, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.ErrorContext(ctx, "publish event failed",
			"subject", subject, "request_id", ev.RequestID, "error", err)
	}
}
