package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wandero/matching/internal/config"
	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/audit"
	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/scoring"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/port/agentdirectory"
	"github.com/wandero/matching/internal/port/messagequeue"
	"github.com/wandero/matching/internal/port/notifier"
)

// fakeStore is an in-memory matchstore.Store with real version-guard semantics.
type fakeStore struct {
	mu       sync.Mutex
	requests map[travelrequest.RequestID]*travelrequest.TravelRequest
	criteria map[travelrequest.RequestID]*criteria.Criteria
	matches  map[match.MatchID]*match.Match
	declines []match.Decline
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests: make(map[travelrequest.RequestID]*travelrequest.TravelRequest),
		criteria: make(map[travelrequest.RequestID]*criteria.Criteria),
		matches:  make(map[match.MatchID]*match.Match),
	}
}

func (f *fakeStore) CreateRequest(_ context.Context, req *travelrequest.TravelRequest, c *criteria.Criteria) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := *req
	cc := *c
	f.requests[req.ID] = &r
	f.criteria[req.ID] = &cc
	return nil
}

func (f *fakeStore) GetRequest(_ context.Context, id travelrequest.RequestID) (*travelrequest.TravelRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, fmt.Errorf("get request %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) GetCriteria(_ context.Context, id travelrequest.RequestID) (*criteria.Criteria, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.criteria[id]
	if !ok {
		return nil, fmt.Errorf("get criteria %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) TransitionRequest(_ context.Context, id travelrequest.RequestID, to travelrequest.Status, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.Version != version {
		return fmt.Errorf("transition request %s: %w", id, domain.ErrConflict)
	}
	r.Status = to
	r.Version++
	r.UpdatedAt = time.Now()
	if to == travelrequest.StatusMatchingInProgress && r.MatchingStartedAt == nil {
		now := time.Now()
		r.MatchingStartedAt = &now
	}
	return nil
}

func (f *fakeStore) RequeueRequest(_ context.Context, id travelrequest.RequestID, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.Version != version {
		return fmt.Errorf("requeue request %s: %w", id, domain.ErrConflict)
	}
	r.Status = travelrequest.StatusMatchingInProgress
	r.Attempt++
	r.Version++
	return nil
}

func (f *fakeStore) ExtendDeadline(_ context.Context, id travelrequest.RequestID, deadline time.Time, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || r.Version != version {
		return fmt.Errorf("extend deadline %s: %w", id, domain.ErrConflict)
	}
	r.Deadline = deadline
	r.Version++
	return nil
}

func (f *fakeStore) ListRequestsPastDeadline(_ context.Context, now time.Time, limit int) ([]travelrequest.TravelRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []travelrequest.TravelRequest
	for _, r := range f.requests {
		if !r.Status.Terminal() && !r.Deadline.After(now) {
			out = append(out, *r)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMatches(_ context.Context, matches []match.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range matches {
		m := matches[i]
		f.matches[m.ID] = &m
	}
	return nil
}

func (f *fakeStore) GetMatch(_ context.Context, id match.MatchID) (*match.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, fmt.Errorf("get match %s: %w", id, domain.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) ListMatchesByRequest(_ context.Context, id travelrequest.RequestID) ([]match.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []match.Match
	for _, m := range f.matches {
		if m.RequestID == id {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionMatch(_ context.Context, id match.MatchID, to match.Status, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok || m.Version != version {
		return fmt.Errorf("transition match %s: %w", id, domain.ErrConflict)
	}
	m.Status = to
	m.Version++
	now := time.Now()
	m.ResolvedAt = &now
	return nil
}

func (f *fakeStore) ExtendMatchExpiry(_ context.Context, id match.MatchID, expiresAt time.Time, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok || m.Version != version || m.Status != match.StatusProposed {
		return fmt.Errorf("extend match %s: %w", id, domain.ErrConflict)
	}
	m.ExpiresAt = expiresAt
	m.Version++
	return nil
}

func (f *fakeStore) ListExpiredMatches(_ context.Context, now time.Time, limit int) ([]match.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []match.Match
	for _, m := range f.matches {
		if m.Status == match.StatusProposed && !m.ExpiresAt.After(now) {
			out = append(out, *m)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) RecordDecline(_ context.Context, d *match.Decline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declines = append(f.declines, *d)
	return nil
}

func (f *fakeStore) DeclinedAgents(_ context.Context, id travelrequest.RequestID) ([]agentprofile.AgentID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[agentprofile.AgentID]struct{})
	var out []agentprofile.AgentID
	for _, d := range f.declines {
		if d.RequestID != id {
			continue
		}
		if _, ok := seen[d.AgentID]; ok {
			continue
		}
		seen[d.AgentID] = struct{}{}
		out = append(out, d.AgentID)
	}
	return out, nil
}

// fakeDirectory is an in-memory agentdirectory.Directory with optional
// failure injection.
type fakeDirectory struct {
	mu       sync.Mutex
	profiles map[agentprofile.AgentID]*agentprofile.Profile
	findErr  error
}

func newFakeDirectory(profiles ...agentprofile.Profile) *fakeDirectory {
	d := &fakeDirectory{profiles: make(map[agentprofile.AgentID]*agentprofile.Profile)}
	for i := range profiles {
		p := profiles[i]
		d.profiles[p.ID] = &p
	}
	return d
}

func (d *fakeDirectory) FindCandidates(_ context.Context, _ agentdirectory.Query) ([]agentprofile.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	out := make([]agentprofile.Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (d *fakeDirectory) Get(_ context.Context, id agentprofile.AgentID) (*agentprofile.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[id]
	if !ok {
		return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (d *fakeDirectory) AdjustWorkload(_ context.Context, id agentprofile.AgentID, delta, version int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[id]
	if !ok || p.Version != version {
		return fmt.Errorf("adjust workload %s: %w", id, domain.ErrConflict)
	}
	p.CurrentWorkload += delta
	if p.CurrentWorkload < 0 {
		p.CurrentWorkload = 0
	}
	p.Version++
	return nil
}

// fakeQueue records published messages and lets tests inspect them by subject.
type fakeQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{published: make(map[string][][]byte)}
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[subject] = append(q.published[subject], data)
	return nil
}

func (q *fakeQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

func (q *fakeQueue) count(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published[subject])
}

// fakeAudit records audit entries in memory.
type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *fakeAudit) Record(_ context.Context, entry *audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *fakeAudit) ListByRequest(_ context.Context, id travelrequest.RequestID) ([]audit.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Entry
	for _, e := range a.entries {
		if e.RequestID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeHub records broadcast events.
type fakeHub struct {
	mu     sync.Mutex
	events []string
}

func (h *fakeHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, eventType)
}

// fakeNotifier records ops notifications.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notifier.Notification
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) Send(_ context.Context, notification notifier.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

// testConfig returns an engine config tuned for tests.
func testConfig() config.Matching {
	cfg := config.Defaults().Matching
	cfg.MaxAttempts = 2
	cfg.WorkloadRetries = 2
	return cfg
}

// newTestService wires a MatchingService over fresh fakes.
func newTestService(store *fakeStore, dir *fakeDirectory) (*MatchingService, *fakeQueue, *fakeAudit, *fakeHub) {
	queue := newFakeQueue()
	auditor := &fakeAudit{}
	hub := &fakeHub{}
	svc := NewMatchingService(store, dir, queue, auditor, hub, scoring.DefaultPolicy(), testConfig())
	return svc, queue, auditor, hub
}

// starAgent builds an available STAR profile.
func starAgent(id string, rating float64) agentprofile.Profile {
	return agentprofile.Profile{
		ID:               agentprofile.AgentID(id),
		FirstName:        "Ana",
		Tier:             agentprofile.TierStar,
		Availability:     agentprofile.AvailabilityAvailable,
		Rating:           rating,
		AvgResponseHours: 2,
		Specializations:  []string{"honeymoon"},
		Regions:          []string{"Portugal"},
		CurrentWorkload:  1,
		MaxWorkload:      10,
		CreatedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// benchAgent builds an available BENCH profile.
func benchAgent(id string, rating float64) agentprofile.Profile {
	p := starAgent(id, rating)
	p.Tier = agentprofile.TierBench
	return p
}

// seedRequest creates a pending request with criteria in the fake store.
func seedRequest(store *fakeStore, id string, c criteria.Criteria) *travelrequest.TravelRequest {
	now := time.Now().UTC()
	req := &travelrequest.TravelRequest{
		ID:           travelrequest.RequestID(id),
		Status:       travelrequest.StatusPending,
		Destinations: []string{"Portugal"},
		TripType:     travelrequest.TripHoneymoon,
		StartDate:    now.AddDate(0, 1, 0),
		EndDate:      now.AddDate(0, 1, 14),
		Travelers:    2,
		BudgetMax:    5000,
		Deadline:     now.Add(72 * time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_ = store.CreateRequest(context.Background(), req, &c)
	return req
}

// defaultTestCriteria returns a permissive criteria set.
func defaultTestCriteria() criteria.Criteria {
	return criteria.Criteria{
		MinAgents:          1,
		MaxAgents:          3,
		AllowBenchFallback: true,
		ResponseWindow:     24 * time.Hour,
		Weights:            criteria.DefaultWeights(),
	}
}
