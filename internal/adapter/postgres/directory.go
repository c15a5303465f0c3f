package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/port/agentdirectory"
)

// Directory implements agentdirectory.Directory against the platform's
// agents table. Profile data is read-only here except for the workload
// counter, which the engine owns.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory creates a Directory backed by the given connection pool.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

const agentColumns = `id, first_name, last_name, email, phone, photo_url, tier, availability,
	rating, completed_bookings, avg_response_hours, specializations, regions,
	current_workload, max_workload, version, created_at`

func scanAgent(row scannable) (agentprofile.Profile, error) {
	var p agentprofile.Profile
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.PhotoURL,
		&p.Tier, &p.Availability, &p.Rating, &p.CompletedBookings, &p.AvgResponseHours,
		&p.Specializations, &p.Regions, &p.CurrentWorkload, &p.MaxWorkload, &p.Version, &p.CreatedAt)
	return p, err
}

// FindCandidates returns agent profiles matching the query. Region and
// specialization filters use array overlap so any shared element qualifies.
func (d *Directory) FindCandidates(ctx context.Context, q agentdirectory.Query) ([]agentprofile.Profile, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE 1=1`
	args := []any{}

	if q.AvailableOnly {
		args = append(args, agentprofile.AvailabilityAvailable)
		query += fmt.Sprintf(` AND availability = $%d`, len(args))
	}
	if len(q.Regions) > 0 {
		args = append(args, pgTextArray(q.Regions))
		query += fmt.Sprintf(` AND regions && $%d`, len(args))
	}
	if len(q.Specializations) > 0 {
		args = append(args, pgTextArray(q.Specializations))
		query += fmt.Sprintf(` AND specializations && $%d`, len(args))
	}
	query += ` ORDER BY rating DESC, created_at ASC`

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var out []agentprofile.Profile
	for rows.Next() {
		p, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns a single agent profile by ID.
func (d *Directory) Get(ctx context.Context, id agentprofile.AgentID) (*agentprofile.Profile, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)

	p, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", id)
	}
	return &p, nil
}

// AdjustWorkload applies delta to the agent's workload counter under the
// version guard. The workload never goes negative.
func (d *Directory) AdjustWorkload(ctx context.Context, id agentprofile.AgentID, delta, version int) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE agents
		 SET current_workload = GREATEST(current_workload + $2, 0), version = version + 1
		 WHERE id = $1 AND version = $3`,
		id, delta, version)
	return execExpectCAS(tag, err, "adjust workload for agent %s", id)
}
