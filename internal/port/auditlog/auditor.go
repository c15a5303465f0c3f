// Package auditlog defines the port for the platform's append-only audit
// collaborator.
package auditlog

import (
	"context"

	"github.com/wandero/matching/internal/domain/audit"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

// Recorder is the port interface for submitting audit entries. Entries are
// append-only; there is no update or delete.
type Recorder interface {
	// Record persists one audit entry. Admin overrides must be recorded
	// before or atomically with the mutation they describe.
	Record(ctx context.Context, entry *audit.Entry) error

	// ListByRequest returns the audit trail for a request, oldest first.
	ListByRequest(ctx context.Context, id travelrequest.RequestID) ([]audit.Entry, error)
}
