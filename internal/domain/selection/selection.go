// Package selection implements tier-fallback candidate selection over scored
// candidates. Selection is deterministic: identical inputs yield identical
// ordering, guaranteed by a total tie-break order.
package selection

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/scoring"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

// Candidate pairs a profile with its composite score.
type Candidate struct {
	Profile agentprofile.Profile
	Score   scoring.Score
}

// Input carries everything a selection round needs.
type Input struct {
	RequestID      travelrequest.RequestID
	Candidates     []Candidate
	Criteria       criteria.Criteria
	DeclinedAgents map[agentprofile.AgentID]struct{} // agents that already declined this request
	Now            time.Time
}

// Select filters ineligible candidates, ranks the STAR pool, applies BENCH
// fallback when enabled and the STAR pool is short of MinAgents, and returns
// up to MaxAgents proposed matches. An empty result is a legitimate outcome,
// not an error.
func Select(in Input) []match.Match {
	eligible := make([]Candidate, 0, len(in.Candidates))
	seen := make(map[agentprofile.AgentID]struct{}, len(in.Candidates))
	for _, c := range in.Candidates {
		if !eligible1(&c.Profile, in.DeclinedAgents) {
			continue
		}
		if _, dup := seen[c.Profile.ID]; dup {
			continue
		}
		seen[c.Profile.ID] = struct{}{}
		eligible = append(eligible, c)
	}

	var star, bench []Candidate
	for _, c := range eligible {
		if c.Profile.Tier == agentprofile.TierStar {
			star = append(star, c)
		} else {
			bench = append(bench, c)
		}
	}
	rank(star)
	rank(bench)

	picked := star
	if len(picked) > in.Criteria.MaxAgents {
		picked = picked[:in.Criteria.MaxAgents]
	}
	// BENCH fallback fills the shortfall without displacing STAR picks.
	if len(picked) < in.Criteria.MinAgents && in.Criteria.AllowBenchFallback {
		room := in.Criteria.MaxAgents - len(picked)
		if room > len(bench) {
			room = len(bench)
		}
		picked = append(picked, bench[:room]...)
	}

	expires := in.Now.Add(in.Criteria.ResponseWindow)
	matches := make([]match.Match, 0, len(picked))
	for _, c := range picked {
		matches = append(matches, match.Match{
			ID:        match.MatchID(uuid.NewString()),
			RequestID: in.RequestID,
			AgentID:   c.Profile.ID,
			Tier:      c.Profile.Tier,
			Score:     c.Score.Value,
			Reasons:   reasons(&c),
			Status:    match.StatusProposed,
			MatchedAt: in.Now,
			ExpiresAt: expires,
		})
	}
	return matches
}

// eligible1 applies the hard eligibility gates.
func eligible1(p *agentprofile.Profile, declined map[agentprofile.AgentID]struct{}) bool {
	if p.Availability == agentprofile.AvailabilityOffline || p.Availability == agentprofile.AvailabilityVacation {
		return false
	}
	if p.AtCapacity() {
		return false
	}
	if _, ok := declined[p.ID]; ok {
		return false
	}
	return true
}

// rank orders candidates by score descending with a deterministic tie-break:
// higher rating, then lower current workload, then earlier profile creation.
func rank(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := &cs[i], &cs[j]
		if a.Score.Value != b.Score.Value {
			return a.Score.Value > b.Score.Value
		}
		if a.Profile.Rating != b.Profile.Rating {
			return a.Profile.Rating > b.Profile.Rating
		}
		if a.Profile.CurrentWorkload != b.Profile.CurrentWorkload {
			return a.Profile.CurrentWorkload < b.Profile.CurrentWorkload
		}
		return a.Profile.CreatedAt.Before(b.Profile.CreatedAt)
	})
}

// reasons builds the human-readable explanation attached to a match.
func reasons(c *Candidate) []string {
	out := make([]string, 0, 4)
	if c.Profile.Tier == agentprofile.TierStar {
		out = append(out, "top-tier agent")
	} else {
		out = append(out, "bench agent selected as fallback")
	}
	for _, comp := range c.Score.Breakdown {
		switch comp.Name {
		case "specialization":
			if comp.Raw > 0 {
				out = append(out, fmt.Sprintf("specialization overlap %.0f%%", comp.Raw*100))
			}
		case "region":
			if comp.Raw == 1 {
				out = append(out, "covers requested destination")
			} else if comp.Raw > 0 {
				out = append(out, "partially covers requested destination")
			}
		case "rating":
			if c.Profile.Rating >= 4.5 {
				out = append(out, fmt.Sprintf("highly rated (%.1f/5)", c.Profile.Rating))
			}
		}
	}
	return out
}
