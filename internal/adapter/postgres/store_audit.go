package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wandero/matching/internal/domain/audit"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

// AuditLog implements auditlog.Recorder using PostgreSQL. Entries are
// append-only; the table has no update path.
type AuditLog struct {
	pool *pgxpool.Pool
}

// NewAuditLog creates an AuditLog backed by the given connection pool.
func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

// Record persists one audit entry.
func (a *AuditLog) Record(ctx context.Context, entry *audit.Entry) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO audit_entries (id, category, severity, actor, resource, action, reason,
		 before_state, after_state, request_id, correlation_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.Category, entry.Severity, entry.Actor, entry.Resource, entry.Action,
		entry.Reason, entry.BeforeState, entry.AfterState, entry.RequestID, entry.CorrelationID,
		entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// ListByRequest returns the audit trail for a request, oldest first.
func (a *AuditLog) ListByRequest(ctx context.Context, id travelrequest.RequestID) ([]audit.Entry, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, category, severity, actor, resource, action, reason,
		 before_state, after_state, request_id, correlation_id, created_at
		 FROM audit_entries WHERE request_id = $1 ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list audit entries for %s: %w", id, err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.Category, &e.Severity, &e.Actor, &e.Resource, &e.Action,
			&e.Reason, &e.BeforeState, &e.AfterState, &e.RequestID, &e.CorrelationID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
