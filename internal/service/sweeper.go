package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	motel "github.com/wandero/matching/internal/adapter/otel"
	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

const sweepBatchSize = 100

// RunSweeper runs the expiry sweep on the configured interval until the
// context is cancelled. Multiple instances may sweep concurrently; the
// version guards make each expiry settle exactly once.
func (s *MatchingService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	slog.Info("expiry sweeper started", "interval", s.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.ErrorContext(ctx, "expiry sweep failed", "error", err)
				s.alert(ctx, "Expiry sweep failed", err.Error(), "warning", "matching.sweep")
			}
		}
	}
}

// Sweep performs one expiry pass. Request-level deadlines settle first and
// take precedence: a match on an expired request times out as part of the
// request's expiry, not as an individual timeout.
func (s *MatchingService) Sweep(ctx context.Context) error {
	ctx, span := motel.StartSweepSpan(ctx)
	defer span.End()

	now := s.now()

	if err := s.sweepRequests(ctx, now); err != nil {
		return err
	}
	return s.sweepMatches(ctx, now)
}

func (s *MatchingService) sweepRequests(ctx context.Context, now time.Time) error {
	requests, err := s.store.ListRequestsPastDeadline(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(s.cfg.MaxConcurrentSweep)
	for i := range requests {
		req := requests[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			s.expireRequest(ctx, req.ID)
		}()
	}
	return sem.Acquire(ctx, s.cfg.MaxConcurrentSweep)
}

// expireRequest moves one request to expired and invalidates its outstanding
// proposals.
func (s *MatchingService) expireRequest(ctx context.Context, id travelrequest.RequestID) {
	unlock := s.lockRequest(id)
	defer unlock()

	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "sweep read request failed", "request_id", id, "error", err)
		return
	}
	s.expireLocked(ctx, req)
}

// expireLocked settles a loaded request as expired and invalidates its
// outstanding proposals. Callers must hold the request lock. Losing the
// version race means another sweeper or a concurrent accept settled the
// request first; both are fine.
func (s *MatchingService) expireLocked(ctx context.Context, req *travelrequest.TravelRequest) {
	if req.Status.Terminal() {
		return
	}

	if err := s.transitionRequest(ctx, req, travelrequest.StatusExpired); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidTransition) {
			return // settled concurrently
		}
		slog.ErrorContext(ctx, "expire request failed", "request_id", req.ID, "error", err)
		return
	}

	s.invalidateSiblings(ctx, req.ID, "")

	slog.InfoContext(ctx, "request expired", "request_id", req.ID, "deadline", req.Deadline)
}

func (s *MatchingService) sweepMatches(ctx context.Context, now time.Time) error {
	matches, err := s.store.ListExpiredMatches(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(s.cfg.MaxConcurrentSweep)
	for i := range matches {
		m := matches[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			s.timeoutMatch(ctx, m.ID)
		}()
	}
	return sem.Acquire(ctx, s.cfg.MaxConcurrentSweep)
}

// timeoutMatch resolves one expired proposal as timed_out, records the
// synthetic decline, and settles the request if no proposals remain.
func (s *MatchingService) timeoutMatch(ctx context.Context, id match.MatchID) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "sweep read match failed", "match_id", id, "error", err)
		return
	}

	unlock := s.lockRequest(m.RequestID)
	defer unlock()

	req, err := s.store.GetRequest(ctx, m.RequestID)
	if err != nil {
		slog.ErrorContext(ctx, "sweep read request failed", "request_id", m.RequestID, "error", err)
		return
	}
	// Request-level expiry owns this match; the request sweep invalidates it.
	if !req.Deadline.After(s.now()) || req.Status.Terminal() {
		return
	}

	if m.Status.Resolved() {
		return // accepted or declined in the meantime
	}
	if err := s.transitionMatch(ctx, m, match.StatusTimedOut); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return // the agent's decision won the race
		}
		slog.ErrorContext(ctx, "timeout match failed", "match_id", id, "error", err)
		return
	}

	decline := &match.Decline{
		MatchID:   m.ID,
		RequestID: m.RequestID,
		AgentID:   m.AgentID,
		Reason:    match.DeclineTimeout,
		CreatedAt: s.now(),
	}
	if err := s.store.RecordDecline(ctx, decline); err != nil {
		slog.ErrorContext(ctx, "record timeout decline failed", "match_id", m.ID, "error", err)
	}

	s.publishMatchResolution(ctx, m, match.DeclineTimeout)
	if s.metrics != nil {
		s.metrics.MatchesTimedOut.Add(ctx, 1)
	}

	slog.InfoContext(ctx, "match timed out",
		"match_id", m.ID, "request_id", m.RequestID, "expired_at", m.ExpiresAt)

	if err := s.settleIfExhausted(ctx, m.RequestID); err != nil {
		slog.ErrorContext(ctx, "settle after timeout failed", "request_id", m.RequestID, "error", err)
	}
}
