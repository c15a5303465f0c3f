// Package audit defines the append-only audit entry submitted to the
// platform audit collaborator for every admin override and every terminal
// state transition.
package audit

import (
	"time"

	"github.com/wandero/matching/internal/domain/travelrequest"
)

// Category classifies the audited activity.
type Category string

const (
	CategoryMatching      Category = "matching"
	CategoryAdminOverride Category = "admin_override"
)

// Severity grades the entry for downstream alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Entry is a single immutable audit record in the platform's standard
// append-only format.
type Entry struct {
	ID            string                  `json:"id"`
	Category      Category                `json:"category"`
	Severity      Severity                `json:"severity"`
	Actor         string                  `json:"actor"`    // "system" or admin identity
	Resource      string                  `json:"resource"` // e.g. "request/<id>", "match/<id>"
	Action        string                  `json:"action"`
	Reason        string                  `json:"reason,omitempty"`
	BeforeState   string                  `json:"before_state"`
	AfterState    string                  `json:"after_state"`
	RequestID     travelrequest.RequestID `json:"request_id"`
	CorrelationID string                  `json:"correlation_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// SystemActor is the actor recorded for automatic (non-admin) transitions.
const SystemActor = "system"
