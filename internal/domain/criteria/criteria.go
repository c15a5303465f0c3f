// Package criteria defines the per-request matching policy and scoring weights.
package criteria

import (
	"fmt"
	"time"

	"github.com/wandero/matching/internal/domain"
)

// Weights holds the six scoring weights. Each weight must be in [0, 1]; the
// sum need not be 1 — the scoring engine normalizes.
type Weights struct {
	Tier           float64 `json:"tier"`
	Rating         float64 `json:"rating"`
	Responsiveness float64 `json:"responsiveness"`
	Specialization float64 `json:"specialization"`
	Region         float64 `json:"region"`
	Workload       float64 `json:"workload"`
}

// DefaultWeights returns the platform default weight set.
func DefaultWeights() Weights {
	return Weights{
		Tier:           0.25,
		Rating:         0.20,
		Responsiveness: 0.15,
		Specialization: 0.20,
		Region:         0.15,
		Workload:       0.05,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Tier + w.Rating + w.Responsiveness + w.Specialization + w.Region + w.Workload
}

// Validate checks each weight is in [0, 1] and at least one is positive.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"tier", w.Tier},
		{"rating", w.Rating},
		{"responsiveness", w.Responsiveness},
		{"specialization", w.Specialization},
		{"region", w.Region},
		{"workload", w.Workload},
	} {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("%w: weight %s must be in [0,1], got %g", domain.ErrValidation, f.name, f.v)
		}
	}
	if w.Sum() == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", domain.ErrValidation)
	}
	return nil
}

// Criteria is the per-request matching policy.
type Criteria struct {
	MinAgents                int           `json:"min_agents"`
	MaxAgents                int           `json:"max_agents"`
	PreferredSpecializations []string      `json:"preferred_specializations,omitempty"`
	AllowBenchFallback       bool          `json:"allow_bench_fallback"`
	PeakSeason               bool          `json:"peak_season"`
	ResponseWindow           time.Duration `json:"response_window"`
	Weights                  Weights       `json:"weights"`
}

// Validate checks structural invariants of the criteria.
func (c *Criteria) Validate() error {
	if c.MinAgents < 1 {
		return fmt.Errorf("%w: min_agents must be >= 1", domain.ErrValidation)
	}
	if c.MaxAgents < c.MinAgents {
		return fmt.Errorf("%w: max_agents must be >= min_agents", domain.ErrValidation)
	}
	if c.ResponseWindow <= 0 {
		return fmt.Errorf("%w: response_window must be positive", domain.ErrValidation)
	}
	return c.Weights.Validate()
}
