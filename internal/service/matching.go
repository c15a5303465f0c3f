// Package service implements the matching engine's business logic on top of
// the persistence, directory, queue, audit, and broadcast ports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	motel "github.com/wandero/matching/internal/adapter/otel"
	"github.com/wandero/matching/internal/config"
	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/scoring"
	"github.com/wandero/matching/internal/domain/selection"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/port/agentdirectory"
	"github.com/wandero/matching/internal/port/auditlog"
	"github.com/wandero/matching/internal/port/broadcast"
	"github.com/wandero/matching/internal/port/cache"
	"github.com/wandero/matching/internal/port/matchstore"
	"github.com/wandero/matching/internal/port/messagequeue"
	"github.com/wandero/matching/internal/port/notifier"
	"github.com/wandero/matching/internal/resilience"
)

// MatchingService runs the matching lifecycle: candidate discovery, scoring,
// tier-fallback selection, dispatch, and the first-accept-wins resolution.
type MatchingService struct {
	store     matchstore.Store
	directory agentdirectory.Directory
	queue     messagequeue.Queue
	audit     auditlog.Recorder
	hub       broadcast.Broadcaster
	policy    scoring.Policy
	cfg       config.Matching

	cache    cache.Cache
	cacheTTL time.Duration
	breaker  *resilience.Breaker
	alerts   notifier.Notifier
	metrics  *motel.Metrics

	// locks serializes matching runs per request. Concurrent triggers for the
	// same request coalesce to one run; different requests proceed in parallel.
	locks sync.Map

	now func() time.Time
}

// NewMatchingService creates a MatchingService with its required ports.
// Optional infrastructure (cache, breaker, alerts, metrics) is attached via
// the Set* methods.
func NewMatchingService(
	store matchstore.Store,
	directory agentdirectory.Directory,
	queue messagequeue.Queue,
	audit auditlog.Recorder,
	hub broadcast.Broadcaster,
	policy scoring.Policy,
	cfg config.Matching,
) *MatchingService {
	return &MatchingService{
		store:     store,
		directory: directory,
		queue:     queue,
		audit:     audit,
		hub:       hub,
		policy:    policy,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetCache attaches the candidate pool cache.
func (s *MatchingService) SetCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// SetBreaker attaches the circuit breaker guarding the agent directory.
func (s *MatchingService) SetBreaker(b *resilience.Breaker) {
	s.breaker = b
}

// SetNotifier attaches the ops alert notifier.
func (s *MatchingService) SetNotifier(n notifier.Notifier) {
	s.alerts = n
}

// SetMetrics attaches the metric instruments.
func (s *MatchingService) SetMetrics(m *motel.Metrics) {
	s.metrics = m
}

// lockRequest acquires the per-request mutex.
func (s *MatchingService) lockRequest(id travelrequest.RequestID) func() {
	muAny, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// RunMatching executes one matching round for the request. It moves the
// request into matching_in_progress, discovers and scores candidates, selects
// up to MaxAgents matches, persists them, and dispatches the proposals. An
// empty pool resolves to no_agents_available; that is an outcome, not an error.
func (s *MatchingService) RunMatching(ctx context.Context, id travelrequest.RequestID) (*match.Result, error) {
	unlock := s.lockRequest(id)
	defer unlock()

	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, span := motel.StartMatchingSpan(ctx, string(req.ID), req.Attempt)
	defer span.End()

	started := s.now()

	// Idempotent trigger: a request already past matching keeps its outcome.
	if req.Status != travelrequest.StatusPending && req.Status != travelrequest.StatusMatchingInProgress {
		return nil, fmt.Errorf("run matching for %s in %s: %w", id, req.Status, domain.ErrInvalidTransition)
	}

	if req.Status == travelrequest.StatusPending {
		if err := s.transitionRequest(ctx, req, travelrequest.StatusMatchingInProgress); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.RunsStarted.Add(ctx, 1)
	}

	crit, err := s.store.GetCriteria(ctx, id)
	if err != nil {
		return nil, err
	}

	candidates, err := s.findCandidates(ctx, req, crit)
	if err != nil {
		span.SetStatus(codes.Error, "candidate discovery failed")
		return nil, err
	}

	declined, err := s.declinedSet(ctx, id)
	if err != nil {
		return nil, err
	}

	scored := s.scoreCandidates(ctx, req, crit, candidates)

	matches := selection.Select(selection.Input{
		RequestID:      req.ID,
		Candidates:     scored,
		Criteria:       *crit,
		DeclinedAgents: declined,
		Now:            s.now(),
	})

	result := &match.Result{
		RequestID:           req.ID,
		Matches:             matches,
		CandidatesEvaluated: len(scored),
		Attempt:             req.Attempt,
	}
	for _, m := range matches {
		if m.Tier == agentprofile.TierStar {
			result.StarCount++
		} else {
			result.BenchCount++
		}
	}

	if len(matches) == 0 {
		if err := s.transitionRequest(ctx, req, travelrequest.StatusNoAgentsAvailable); err != nil {
			return nil, err
		}
		result.Status = travelrequest.StatusNoAgentsAvailable
		result.Duration = s.now().Sub(started)
		if s.metrics != nil {
			s.metrics.RunsNoAgents.Add(ctx, 1)
		}
		slog.InfoContext(ctx, "matching found no eligible agents",
			"request_id", req.ID, "attempt", req.Attempt, "candidates", len(scored))
		return result, nil
	}

	if err := s.store.CreateMatches(ctx, matches); err != nil {
		return nil, fmt.Errorf("persist matches for %s: %w", id, err)
	}

	if err := s.transitionRequest(ctx, req, travelrequest.StatusAgentsMatched); err != nil {
		return nil, err
	}
	s.publishMatched(ctx, req, matches, result)

	// Proposals are out; the request now waits on agent responses.
	if err := s.transitionRequest(ctx, req, travelrequest.StatusAwaitingResponse); err != nil {
		return nil, err
	}

	result.Status = travelrequest.StatusAwaitingResponse
	result.Duration = s.now().Sub(started)

	if s.metrics != nil {
		s.metrics.MatchesProposed.Add(ctx, int64(len(matches)))
		s.metrics.RunDuration.Record(ctx, result.Duration.Seconds())
		s.metrics.CandidatesScored.Record(ctx, int64(len(scored)))
	}
	span.SetAttributes(
		attribute.Int("matches.proposed", len(matches)),
		attribute.Int("candidates.evaluated", len(scored)),
	)

	slog.InfoContext(ctx, "matching run completed",
		"request_id", req.ID, "attempt", req.Attempt,
		"matches", len(matches), "star", result.StarCount, "bench", result.BenchCount,
		"duration", result.Duration)

	return result, nil
}

// findCandidates queries the agent directory through the breaker, with a
// short-TTL cache in front so retry bursts do not hammer the directory.
func (s *MatchingService) findCandidates(ctx context.Context, req *travelrequest.TravelRequest, crit *criteria.Criteria) ([]agentprofile.Profile, error) {
	q := agentdirectory.Query{
		Regions:         req.Destinations,
		Specializations: crit.PreferredSpecializations,
	}

	cacheKey := candidateCacheKey(q)
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
			var profiles []agentprofile.Profile
			if err := json.Unmarshal(data, &profiles); err == nil {
				return profiles, nil
			}
		}
	}

	var profiles []agentprofile.Profile
	fetch := func() error {
		var err error
		profiles, err = s.directory.FindCandidates(ctx, q)
		return err
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			s.alert(ctx, "Agent directory circuit open",
				fmt.Sprintf("candidate discovery for request %s rejected by open circuit", req.ID),
				"error", "directory.circuit_open")
		}
		return nil, fmt.Errorf("find candidates for %s: %w", req.ID, err)
	}

	if s.cache != nil && len(profiles) > 0 {
		if data, err := json.Marshal(profiles); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return profiles, nil
}

func candidateCacheKey(q agentdirectory.Query) string {
	data, _ := json.Marshal(q)
	return "candidates:" + string(data)
}

// scoreCandidates scores each profile, skipping profiles with invalid data.
// A bad profile costs one warning line, never the run.
func (s *MatchingService) scoreCandidates(ctx context.Context, req *travelrequest.TravelRequest, crit *criteria.Criteria, profiles []agentprofile.Profile) []selection.Candidate {
	out := make([]selection.Candidate, 0, len(profiles))
	for i := range profiles {
		p := profiles[i]
		score, err := s.policy.Score(&p, crit, req.Destinations)
		if err != nil {
			slog.WarnContext(ctx, "skipping candidate with invalid profile",
				"request_id", req.ID, "agent_id", p.ID, "error", err)
			continue
		}
		out = append(out, selection.Candidate{Profile: p, Score: score})
	}
	return out
}

func (s *MatchingService) declinedSet(ctx context.Context, id travelrequest.RequestID) (map[agentprofile.AgentID]struct{}, error) {
	agents, err := s.store.DeclinedAgents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list declined agents for %s: %w", id, err)
	}
	set := make(map[agentprofile.AgentID]struct{}, len(agents))
	for _, a := range agents {
		set[a] = struct{}{}
	}
	return set, nil
}

// StartRequestSubscriber consumes matching.requested and triggers runs. The
// returned cancel function stops the subscription.
func (s *MatchingService) StartRequestSubscriber(ctx context.Context) (func(), error) {
	return s.queue.Subscribe(ctx, messagequeue.SubjectMatchingRequested, func(msgCtx context.Context, _ string, data []byte) error {
		var payload messagequeue.MatchingRequestedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			slog.ErrorContext(msgCtx, "malformed matching.requested payload", "error", err)
			return nil // poison message, do not redeliver
		}

		_, err := s.RunMatching(msgCtx, travelrequest.RequestID(payload.RequestID))
		if err != nil {
			// Invalid transitions mean the request already moved on; the
			// trigger is stale and redelivery cannot help.
			if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
				slog.WarnContext(msgCtx, "stale matching trigger dropped",
					"request_id", payload.RequestID, "error", err)
				return nil
			}
			slog.ErrorContext(msgCtx, "matching run failed",
				"request_id", payload.RequestID, "error", err)
			return err
		}
		return nil
	})
}

// alert sends an ops notification, logging delivery failures.
func (s *MatchingService) alert(ctx context.Context, title, message, level, source string) {
	if s.alerts == nil {
		return
	}
	err := s.alerts.Send(ctx, notifier.Notification{
		Title:   title,
		Message: message,
		Level:   level,
		Source:  source,
	})
	if err != nil && !errors.Is(err, notifier.ErrNotConfigured) {
		slog.ErrorContext(ctx, "ops alert delivery failed", "source", source, "error", err)
	}
}

// recordOutcomeMetric bumps the terminal-outcome counters.
func (s *MatchingService) recordOutcomeMetric(ctx context.Context, to travelrequest.Status) {
	if s.metrics == nil {
		return
	}
	switch to {
	case travelrequest.StatusAgentConfirmed:
		s.metrics.RunsConfirmed.Add(ctx, 1)
	case travelrequest.StatusMatchingFailed:
		s.metrics.RunsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
	}
}
