package selection

import (
	"testing"
	"time"

	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/scoring"
)

var now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func candidate(id string, tier agentprofile.Tier, score float64) Candidate {
	return Candidate{
		Profile: agentprofile.Profile{
			ID:              agentprofile.AgentID(id),
			Tier:            tier,
			Availability:    agentprofile.AvailabilityAvailable,
			Rating:          4.0,
			CurrentWorkload: 2,
			MaxWorkload:     10,
			CreatedAt:       now.AddDate(-1, 0, 0),
		},
		Score: scoring.Score{Value: score},
	}
}

func input(cands []Candidate, c criteria.Criteria) Input {
	return Input{
		RequestID:  "req-1",
		Candidates: cands,
		Criteria:   c,
		Now:        now,
	}
}

func testCriteria() criteria.Criteria {
	return criteria.Criteria{
		MinAgents:          1,
		MaxAgents:          3,
		AllowBenchFallback: true,
		ResponseWindow:     24 * time.Hour,
		Weights:            criteria.DefaultWeights(),
	}
}

func ids(ms []match.Match) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, string(m.AgentID))
	}
	return out
}

func TestSelect_RanksByScore(t *testing.T) {
	got := Select(input([]Candidate{
		candidate("low", agentprofile.TierStar, 0.3),
		candidate("high", agentprofile.TierStar, 0.9),
		candidate("mid", agentprofile.TierStar, 0.6),
	}, testCriteria()))

	want := []string{"high", "mid", "low"}
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected %d matches, got %v", len(want), g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, g[i], want[i])
		}
	}
}

func TestSelect_CapsAtMaxAgents(t *testing.T) {
	c := testCriteria()
	c.MaxAgents = 2

	got := Select(input([]Candidate{
		candidate("a", agentprofile.TierStar, 0.9),
		candidate("b", agentprofile.TierStar, 0.8),
		candidate("c", agentprofile.TierStar, 0.7),
	}, c))

	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestSelect_BenchFallbackFillsShortfall(t *testing.T) {
	c := testCriteria()
	c.MinAgents = 2

	got := Select(input([]Candidate{
		candidate("star-1", agentprofile.TierStar, 0.4),
		candidate("bench-1", agentprofile.TierBench, 0.9),
		candidate("bench-2", agentprofile.TierBench, 0.8),
	}, c))

	g := ids(got)
	if len(g) != 3 {
		t.Fatalf("expected star plus bench fill, got %v", g)
	}
	// The star pick always leads even when bench scores are higher.
	if g[0] != "star-1" {
		t.Errorf("star pick must lead, got %v", g)
	}
}

func TestSelect_NoBenchWhenStarPoolSuffices(t *testing.T) {
	got := Select(input([]Candidate{
		candidate("star-1", agentprofile.TierStar, 0.5),
		candidate("bench-1", agentprofile.TierBench, 0.9),
	}, testCriteria())) // MinAgents 1

	if len(got) != 1 || got[0].AgentID != "star-1" {
		t.Fatalf("expected only the star agent, got %v", ids(got))
	}
}

func TestSelect_FallbackDisabled(t *testing.T) {
	c := testCriteria()
	c.MinAgents = 2
	c.AllowBenchFallback = false

	got := Select(input([]Candidate{
		candidate("star-1", agentprofile.TierStar, 0.5),
		candidate("bench-1", agentprofile.TierBench, 0.9),
	}, c))

	if len(got) != 1 || got[0].AgentID != "star-1" {
		t.Fatalf("expected only the star agent with fallback off, got %v", ids(got))
	}
}

func TestSelect_ExcludesIneligible(t *testing.T) {
	offline := candidate("offline", agentprofile.TierStar, 0.9)
	offline.Profile.Availability = agentprofile.AvailabilityOffline

	vacation := candidate("vacation", agentprofile.TierStar, 0.9)
	vacation.Profile.Availability = agentprofile.AvailabilityVacation

	full := candidate("full", agentprofile.TierStar, 0.9)
	full.Profile.CurrentWorkload = full.Profile.MaxWorkload

	declined := candidate("declined", agentprofile.TierStar, 0.9)

	in := input([]Candidate{offline, vacation, full, declined, candidate("ok", agentprofile.TierStar, 0.5)}, testCriteria())
	in.DeclinedAgents = map[agentprofile.AgentID]struct{}{"declined": {}}

	got := Select(in)
	if len(got) != 1 || got[0].AgentID != "ok" {
		t.Fatalf("expected only the eligible agent, got %v", ids(got))
	}
}

func TestSelect_BusyAgentsRemainEligible(t *testing.T) {
	busy := candidate("busy", agentprofile.TierStar, 0.9)
	busy.Profile.Availability = agentprofile.AvailabilityBusy

	got := Select(input([]Candidate{busy}, testCriteria()))
	if len(got) != 1 {
		t.Fatal("busy agents with headroom must stay eligible")
	}
}

func TestSelect_Deduplicates(t *testing.T) {
	got := Select(input([]Candidate{
		candidate("dup", agentprofile.TierStar, 0.9),
		candidate("dup", agentprofile.TierStar, 0.9),
	}, testCriteria()))

	if len(got) != 1 {
		t.Fatalf("expected a single match for duplicate candidates, got %d", len(got))
	}
}

func TestSelect_TieBreakOrder(t *testing.T) {
	// Equal scores: higher rating wins, then lower workload, then older profile.
	byRating := candidate("by-rating", agentprofile.TierStar, 0.5)
	byRating.Profile.Rating = 4.9

	byWorkload := candidate("by-workload", agentprofile.TierStar, 0.5)
	byWorkload.Profile.CurrentWorkload = 1

	byAge := candidate("by-age", agentprofile.TierStar, 0.5)
	byAge.Profile.CreatedAt = now.AddDate(-5, 0, 0)

	base := candidate("base", agentprofile.TierStar, 0.5)

	c := testCriteria()
	c.MaxAgents = 4
	got := Select(input([]Candidate{base, byAge, byWorkload, byRating}, c))

	want := []string{"by-rating", "by-workload", "by-age", "base"}
	g := ids(got)
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("tie-break order mismatch: got %v, want %v", g, want)
		}
	}
}

func TestSelect_MatchFields(t *testing.T) {
	got := Select(input([]Candidate{candidate("a", agentprofile.TierStar, 0.7)}, testCriteria()))
	if len(got) != 1 {
		t.Fatal("expected one match")
	}
	m := got[0]
	if m.Status != match.StatusProposed {
		t.Errorf("expected proposed, got %s", m.Status)
	}
	if m.ID == "" {
		t.Error("expected an assigned match ID")
	}
	if m.RequestID != "req-1" {
		t.Errorf("unexpected request ID %s", m.RequestID)
	}
	if !m.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("expected expiry at now+window, got %s", m.ExpiresAt)
	}
	if len(m.Reasons) == 0 {
		t.Error("expected selection reasons")
	}
}

func TestSelect_EmptyPool(t *testing.T) {
	got := Select(input(nil, testCriteria()))
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}
