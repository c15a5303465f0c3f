// Package scoring implements the pure multi-criteria candidate scorer.
//
// Scoring is deterministic and side-effect-free: identical inputs always
// produce identical output, which is required for audit reproducibility.
package scoring

import (
	"fmt"
	"strings"

	"github.com/wandero/matching/internal/domain"
	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/criteria"
)

// Policy holds the platform-level scoring constants. Per-request weights live
// in criteria.Weights; Policy covers what the request cannot override.
type Policy struct {
	StarTierScore    float64
	BenchTierScore   float64
	MaxResponseHours float64
}

// DefaultPolicy returns the standard scoring constants.
func DefaultPolicy() Policy {
	return Policy{
		StarTierScore:    1.0,
		BenchTierScore:   0.5,
		MaxResponseHours: 24,
	}
}

// Component is one contributing sub-score in a breakdown.
type Component struct {
	Name     string  `json:"name"`
	Raw      float64 `json:"raw"`    // normalized sub-score in [0,1]
	Weight   float64 `json:"weight"` // effective (normalized) weight
	Weighted float64 `json:"weighted"`
}

// Score is a composite score with its full breakdown.
type Score struct {
	Value     float64     `json:"value"` // in [0,1]
	Breakdown []Component `json:"breakdown"`
}

// Score computes the weighted composite score for a candidate against the
// given criteria. Candidates with unusable data (zero max workload, rating
// outside 0..5, negative response time) return an error and are skipped by
// the caller rather than failing the batch.
func (p Policy) Score(agent *agentprofile.Profile, c *criteria.Criteria, destinations []string) (Score, error) {
	if agent.MaxWorkload <= 0 {
		return Score{}, fmt.Errorf("%w: agent %s has no max workload", domain.ErrValidation, agent.ID)
	}
	if agent.Rating < 0 || agent.Rating > 5 {
		return Score{}, fmt.Errorf("%w: agent %s rating %g outside [0,5]", domain.ErrValidation, agent.ID, agent.Rating)
	}
	if agent.AvgResponseHours < 0 {
		return Score{}, fmt.Errorf("%w: agent %s has negative response time", domain.ErrValidation, agent.ID)
	}

	w := c.Weights
	total := w.Sum()
	if total <= 0 {
		return Score{}, fmt.Errorf("%w: weight sum must be positive", domain.ErrValidation)
	}

	subs := []struct {
		name   string
		raw    float64
		weight float64
	}{
		{"tier", p.tierScore(agent.Tier), w.Tier},
		{"rating", clip(agent.Rating / 5), w.Rating},
		{"responsiveness", p.responsivenessScore(agent.AvgResponseHours), w.Responsiveness},
		{"specialization", jaccard(c.PreferredSpecializations, agent.Specializations), w.Specialization},
		{"region", regionScore(destinations, agent.Regions), w.Region},
		{"workload", workloadScore(agent.CurrentWorkload, agent.MaxWorkload), w.Workload},
	}

	s := Score{Breakdown: make([]Component, 0, len(subs))}
	for _, sub := range subs {
		raw := clip(sub.raw)
		weight := sub.weight / total
		weighted := raw * weight
		s.Value += weighted
		s.Breakdown = append(s.Breakdown, Component{
			Name:     sub.name,
			Raw:      raw,
			Weight:   weight,
			Weighted: weighted,
		})
	}
	s.Value = clip(s.Value)
	return s, nil
}

func (p Policy) tierScore(t agentprofile.Tier) float64 {
	if t == agentprofile.TierStar {
		return p.StarTierScore
	}
	return p.BenchTierScore
}

// responsivenessScore rewards faster responders: 1 at instant response,
// 0 at or beyond the policy cap.
func (p Policy) responsivenessScore(avgHours float64) float64 {
	if p.MaxResponseHours <= 0 {
		return 0
	}
	ratio := avgHours / p.MaxResponseHours
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}

// jaccard returns |A∩B| / |A∪B| over case-folded sets. Zero when either set
// is empty — no overlap is possible.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := fold(a)
	setB := fold(b)
	inter := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// regionScore is 1 when any requested destination exactly matches an agent
// region (case-folded), 0.5 when a destination and a region only contain one
// another (e.g. "Paris, France" vs "France"), else 0.
func regionScore(destinations, regions []string) float64 {
	if len(destinations) == 0 || len(regions) == 0 {
		return 0
	}
	partial := false
	for _, d := range destinations {
		dl := strings.ToLower(strings.TrimSpace(d))
		for _, r := range regions {
			rl := strings.ToLower(strings.TrimSpace(r))
			if dl == rl {
				return 1
			}
			if dl != "" && rl != "" && (strings.Contains(dl, rl) || strings.Contains(rl, dl)) {
				partial = true
			}
		}
	}
	if partial {
		return 0.5
	}
	return 0
}

func workloadScore(current, maximum int) float64 {
	if maximum <= 0 {
		return 0
	}
	return clip(1 - float64(current)/float64(maximum))
}

func fold(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func clip(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
