// Package agentprofile defines the travel agent profile entities.
//
// Profile carries the agent's full identity and must never cross the trust
// boundary before a booking is confirmed. Obfuscated is the only view that
// may be published externally; it omits identity fields by construction.
package agentprofile

import "time"

// AgentID identifies an agent. It is distinct from request and match IDs and
// must never be assigned across kinds.
type AgentID string

// Tier partitions the agent pool. STAR agents are preferred; BENCH agents are
// used only as fallback.
type Tier string

const (
	TierStar  Tier = "star"
	TierBench Tier = "bench"
)

// Availability represents the agent's current availability state.
type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
	AvailabilityOffline   Availability = "offline"
	AvailabilityVacation  Availability = "vacation"
)

// Profile is the internal agent record as returned by the agent directory.
type Profile struct {
	ID                AgentID      `json:"id"`
	FirstName         string       `json:"first_name"`
	LastName          string       `json:"last_name"`
	Email             string       `json:"email"`
	Phone             string       `json:"phone"`
	PhotoURL          string       `json:"photo_url"`
	Tier              Tier         `json:"tier"`
	Availability      Availability `json:"availability"`
	Rating            float64      `json:"rating"` // 0..5
	CompletedBookings int          `json:"completed_bookings"`
	AvgResponseHours  float64      `json:"avg_response_hours"`
	Specializations   []string     `json:"specializations"`
	Regions           []string     `json:"regions"`
	CurrentWorkload   int          `json:"current_workload"`
	MaxWorkload       int          `json:"max_workload"`
	Version           int          `json:"version"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Obfuscated is the agent view permitted to leave the engine before booking
// confirmation. It has no identity fields to redact because it never had them.
type Obfuscated struct {
	FirstName        string   `json:"first_name"`
	PhotoURL         string   `json:"photo_url"`
	Tier             Tier     `json:"tier"`
	Rating           float64  `json:"rating"`
	AvgResponseHours float64  `json:"avg_response_hours"`
	Specializations  []string `json:"specializations"`
	Regions          []string `json:"regions"`
}

// Obfuscate returns the external view of the profile.
func (p *Profile) Obfuscate() Obfuscated {
	return Obfuscated{
		FirstName:        p.FirstName,
		PhotoURL:         p.PhotoURL,
		Tier:             p.Tier,
		Rating:           p.Rating,
		AvgResponseHours: p.AvgResponseHours,
		Specializations:  append([]string(nil), p.Specializations...),
		Regions:          append([]string(nil), p.Regions...),
	}
}

// Headroom returns the agent's remaining capacity. Never negative.
func (p *Profile) Headroom() int {
	if h := p.MaxWorkload - p.CurrentWorkload; h > 0 {
		return h
	}
	return 0
}

// AtCapacity reports whether the agent has no remaining workload slots.
func (p *Profile) AtCapacity() bool {
	return p.MaxWorkload > 0 && p.CurrentWorkload >= p.MaxWorkload
}
