package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/travelrequest"
	"github.com/wandero/matching/internal/port/messagequeue"
)

func newTestRequestService(store *fakeStore, dir *fakeDirectory) (*RequestService, *fakeQueue) {
	queue := newFakeQueue()
	svc := NewRequestService(store, dir, queue, &fakeAudit{}, testConfig())
	return svc, queue
}

func validCreate() *travelrequest.CreateRequest {
	now := time.Now()
	return &travelrequest.CreateRequest{
		Destinations: []string{"Portugal"},
		TripType:     travelrequest.TripHoneymoon,
		StartDate:    now.AddDate(0, 2, 0),
		EndDate:      now.AddDate(0, 2, 14),
		Travelers:    2,
		BudgetMin:    2000,
		BudgetMax:    8000,
	}
}

func TestRequestCreate_PersistsAndTriggers(t *testing.T) {
	store := newFakeStore()
	svc, queue := newTestRequestService(store, newFakeDirectory())

	req, err := svc.Create(context.Background(), validCreate(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != travelrequest.StatusPending {
		t.Errorf("expected pending, got %s", req.Status)
	}
	if req.Deadline.Before(req.CreatedAt.Add(71 * time.Hour)) {
		t.Error("expected request TTL deadline")
	}

	// Criteria defaults land in the store.
	c, err := store.GetCriteria(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("criteria: %v", err)
	}
	if c.MinAgents != 1 || c.MaxAgents != 3 {
		t.Errorf("unexpected default criteria: %+v", c)
	}

	// The matching trigger carries the request ID.
	if queue.count(messagequeue.SubjectMatchingRequested) != 1 {
		t.Fatal("expected matching trigger")
	}
	var payload messagequeue.MatchingRequestedPayload
	queue.mu.Lock()
	data := queue.published[messagequeue.SubjectMatchingRequested][0]
	queue.mu.Unlock()
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal trigger: %v", err)
	}
	if payload.RequestID != string(req.ID) {
		t.Errorf("trigger for %q, want %q", payload.RequestID, req.ID)
	}
}

func TestRequestCreate_MergesPartialCriteria(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestRequestService(store, newFakeDirectory())

	req, err := svc.Create(context.Background(), validCreate(), &criteria.Criteria{MaxAgents: 5, MinAgents: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c, _ := store.GetCriteria(context.Background(), req.ID)
	if c.MaxAgents != 5 || c.MinAgents != 2 {
		t.Errorf("caller criteria lost: %+v", c)
	}
	if c.ResponseWindow == 0 || c.Weights.Sum() == 0 {
		t.Errorf("defaults not merged: %+v", c)
	}
}

func TestRequestCreate_ValidationErrors(t *testing.T) {
	svc, queue := newTestRequestService(newFakeStore(), newFakeDirectory())

	tests := []struct {
		name string
		mod  func(*travelrequest.CreateRequest)
	}{
		{"no destinations", func(r *travelrequest.CreateRequest) { r.Destinations = nil }},
		{"zero travelers", func(r *travelrequest.CreateRequest) { r.Travelers = 0 }},
		{"budget inverted", func(r *travelrequest.CreateRequest) { r.BudgetMax = r.BudgetMin - 1 }},
		{"dates inverted", func(r *travelrequest.CreateRequest) { r.EndDate = r.StartDate.AddDate(0, 0, -1) }},
		{"unknown trip type", func(r *travelrequest.CreateRequest) { r.TripType = "safari" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := validCreate()
			tt.mod(cr)
			_, err := svc.Create(context.Background(), cr, nil)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	if queue.count(messagequeue.SubjectMatchingRequested) != 0 {
		t.Error("invalid intake must not trigger matching")
	}
}

func TestRequestGet_ObfuscatesAgents(t *testing.T) {
	store := newFakeStore()
	dir := newFakeDirectory(starAgent("agent-1", 4.8))
	matchSvc, _, _, _ := newTestService(store, dir)
	reqSvc, _ := newTestRequestService(store, dir)

	runToAwaiting(t, matchSvc, store, "req-1")

	view, err := reqSvc.Get(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Matches) != 1 {
		t.Fatalf("expected 1 match view, got %d", len(view.Matches))
	}
	agent := view.Matches[0].Agent
	if agent == nil {
		t.Fatal("expected obfuscated agent view")
	}
	if agent.FirstName == "" || agent.Tier == "" {
		t.Error("expected public profile fields")
	}
}

func TestRequestGet_NotFound(t *testing.T) {
	svc, _ := newTestRequestService(newFakeStore(), newFakeDirectory())

	_, err := svc.Get(context.Background(), "req-missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
