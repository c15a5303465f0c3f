package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wandero/matching/internal/config"
	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/audit"
	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/logger"
	"github.com/wandero/matching/internal/port/agentdirectory"
	"github.com/wandero/matching/internal/port/auditlog"
	"github.com/wandero/matching/internal/port/matchstore"
	"github.com/wandero/matching/internal/port/messagequeue"
)

// RequestService handles travel request intake and read access.
type RequestService struct {
	store     matchstore.Store
	directory agentdirectory.Directory
	queue     messagequeue.Queue
	audit     auditlog.Recorder
	cfg       config.Matching

	now func() time.Time
}

// NewRequestService creates a RequestService.
func NewRequestService(
	store matchstore.Store,
	directory agentdirectory.Directory,
	queue messagequeue.Queue,
	auditor auditlog.Recorder,
	cfg config.Matching,
) *RequestService {
	return &RequestService{
		store:     store,
		directory: directory,
		queue:     queue,
		audit:     auditor,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create validates the intake, persists the request with its criteria, and
// publishes the matching trigger. Missing criteria fields fall back to the
// configured platform defaults.
func (s *RequestService) Create(ctx context.Context, cr *travelrequest.CreateRequest, crit *criteria.Criteria) (*travelrequest.TravelRequest, error) {
	if err := cr.Validate(); err != nil {
		return nil, err
	}

	c := s.defaultCriteria()
	if crit != nil {
		c = s.mergeCriteria(crit)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	req := &travelrequest.TravelRequest{
		ID:           travelrequest.RequestID("req-" + uuid.NewString()),
		Status:       travelrequest.StatusPending,
		Destinations: cr.Destinations,
		TripType:     cr.TripType,
		StartDate:    cr.StartDate,
		EndDate:      cr.EndDate,
		Travelers:    cr.Travelers,
		BudgetMin:    cr.BudgetMin,
		BudgetMax:    cr.BudgetMax,
		Preferences:  cr.Preferences,
		Deadline:     now.Add(s.cfg.RequestTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateRequest(ctx, req, &c); err != nil {
		return nil, err
	}

	trigger, err := json.Marshal(messagequeue.MatchingRequestedPayload{
		RequestID:     string(req.ID),
		CorrelationID: logger.CorrelationID(ctx),
	})
	if err != nil {
		return req, fmt.Errorf("marshal matching trigger: %w", err)
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectMatchingRequested, trigger); err != nil {
		// The request is persisted; matching can be retriggered later.
		slog.ErrorContext(ctx, "matching trigger publish failed",
			"request_id", req.ID, "error", err)
	}

	slog.InfoContext(ctx, "travel request created",
		"request_id", req.ID, "trip_type", req.TripType, "destinations", req.Destinations)
	return req, nil
}

// defaultCriteria builds the platform-default matching policy.
func (s *RequestService) defaultCriteria() criteria.Criteria {
	return criteria.Criteria{
		MinAgents:          s.cfg.DefaultMinAgents,
		MaxAgents:          s.cfg.DefaultMaxAgents,
		AllowBenchFallback: s.cfg.AllowBenchFallback,
		ResponseWindow:     s.cfg.ResponseWindow,
		Weights:            criteria.DefaultWeights(),
	}
}

// mergeCriteria fills zero-valued fields of the caller's criteria from the
// platform defaults.
func (s *RequestService) mergeCriteria(in *criteria.Criteria) criteria.Criteria {
	c := *in
	def := s.defaultCriteria()
	if c.MinAgents == 0 {
		c.MinAgents = def.MinAgents
	}
	if c.MaxAgents == 0 {
		c.MaxAgents = def.MaxAgents
	}
	if c.ResponseWindow == 0 {
		c.ResponseWindow = def.ResponseWindow
	}
	if c.Weights.Sum() == 0 {
		c.Weights = def.Weights
	}
	return c
}

// MatchView is the externally safe projection of a match: the agent appears
// obfuscated, with identity revealed only after confirmation.
type MatchView struct {
	MatchID   match.MatchID            `json:"match_id"`
	Status    match.Status             `json:"status"`
	Score     float64                  `json:"score"`
	Reasons   []string                 `json:"reasons,omitempty"`
	ExpiresAt time.Time                `json:"expires_at"`
	Agent     *agentprofile.Obfuscated `json:"agent,omitempty"`
}

// RequestView combines the request with its proposed matches.
type RequestView struct {
	Request *travelrequest.TravelRequest `json:"request"`
	Matches []MatchView                  `json:"matches"`
}

// Get returns the request and its matches with obfuscated agent views.
func (s *RequestService) Get(ctx context.Context, id travelrequest.RequestID) (*RequestView, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.ListMatchesByRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		v := MatchView{
			MatchID:   m.ID,
			Status:    m.Status,
			Score:     m.Score,
			Reasons:   m.Reasons,
			ExpiresAt: m.ExpiresAt,
		}
		if p, err := s.directory.Get(ctx, m.AgentID); err == nil {
			ob := p.Obfuscate()
			v.Agent = &ob
		}
		views = append(views, v)
	}

	return &RequestView{Request: req, Matches: views}, nil
}

// AuditTrail returns the request's audit entries, oldest first.
func (s *RequestService) AuditTrail(ctx context.Context, id travelrequest.RequestID) ([]audit.Entry, error) {
	if _, err := s.store.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.ListByRequest(ctx, id)
}
