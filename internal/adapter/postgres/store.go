package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wandero/matching/internal/domain/criteria"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

// Store implements matchstore.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const requestColumns = `id, status, destinations, trip_type, start_date, end_date, travelers,
	budget_min, budget_max, preferences, attempt, version, matching_started_at, deadline, created_at, updated_at`

func scanRequest(row scannable) (travelrequest.TravelRequest, error) {
	var r travelrequest.TravelRequest
	err := row.Scan(&r.ID, &r.Status, &r.Destinations, &r.TripType, &r.StartDate, &r.EndDate,
		&r.Travelers, &r.BudgetMin, &r.BudgetMax, &r.Preferences, &r.Attempt, &r.Version,
		&r.MatchingStartedAt, &r.Deadline, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// CreateRequest persists a new travel request together with its matching
// criteria in one transaction, so a request can never exist without a policy.
func (s *Store) CreateRequest(ctx context.Context, req *travelrequest.TravelRequest, c *criteria.Criteria) error {
	weightsJSON, err := json.Marshal(c.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO travel_requests (id, status, destinations, trip_type, start_date, end_date, travelers,
		 budget_min, budget_max, preferences, attempt, version, deadline, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		req.ID, req.Status, pgTextArray(req.Destinations), req.TripType, req.StartDate, req.EndDate,
		req.Travelers, req.BudgetMin, req.BudgetMax, req.Preferences, req.Attempt, req.Version,
		req.Deadline, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.ID, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO matching_criteria (request_id, min_agents, max_agents, preferred_specializations,
		 allow_bench_fallback, peak_season, response_window_seconds, weights)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, c.MinAgents, c.MaxAgents, pgTextArray(c.PreferredSpecializations),
		c.AllowBenchFallback, c.PeakSeason, int64(c.ResponseWindow.Seconds()), weightsJSON)
	if err != nil {
		return fmt.Errorf("insert criteria for %s: %w", req.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create request %s: %w", req.ID, err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id travelrequest.RequestID) (*travelrequest.TravelRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM travel_requests WHERE id = $1`, id)

	r, err := scanRequest(row)
	if err != nil {
		return nil, notFoundWrap(err, "get request %s", id)
	}
	return &r, nil
}

func (s *Store) GetCriteria(ctx context.Context, id travelrequest.RequestID) (*criteria.Criteria, error) {
	var (
		c           criteria.Criteria
		windowSecs  int64
		weightsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT min_agents, max_agents, preferred_specializations, allow_bench_fallback,
		 peak_season, response_window_seconds, weights
		 FROM matching_criteria WHERE request_id = $1`, id).
		Scan(&c.MinAgents, &c.MaxAgents, &c.PreferredSpecializations, &c.AllowBenchFallback,
			&c.PeakSeason, &windowSecs, &weightsJSON)
	if err != nil {
		return nil, notFoundWrap(err, "get criteria for %s", id)
	}

	c.ResponseWindow = time.Duration(windowSecs) * time.Second
	if err := json.Unmarshal(weightsJSON, &c.Weights); err != nil {
		return nil, fmt.Errorf("unmarshal weights for %s: %w", id, err)
	}
	return &c, nil
}

// TransitionRequest moves the request to a new status iff the stored version
// matches. The transition legality check lives in the service layer; the
// store only enforces the concurrency guard.
func (s *Store) TransitionRequest(ctx context.Context, id travelrequest.RequestID, to travelrequest.Status, version int) error {
	var startedAt any
	if to == travelrequest.StatusMatchingInProgress {
		startedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE travel_requests
		 SET status = $2, version = version + 1, updated_at = now(),
		     matching_started_at = COALESCE($4, matching_started_at)
		 WHERE id = $1 AND version = $3`,
		id, to, version, startedAt)
	return execExpectCAS(tag, err, "transition request %s to %s", id, to)
}

// RequeueRequest re-enters matching_in_progress and bumps the attempt counter.
func (s *Store) RequeueRequest(ctx context.Context, id travelrequest.RequestID, version int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE travel_requests
		 SET status = $2, attempt = attempt + 1, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $3`,
		id, travelrequest.StatusMatchingInProgress, version)
	return execExpectCAS(tag, err, "requeue request %s", id)
}

// ExtendDeadline pushes the request-level deadline forward.
func (s *Store) ExtendDeadline(ctx context.Context, id travelrequest.RequestID, deadline time.Time, version int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE travel_requests
		 SET deadline = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $3`,
		id, deadline, version)
	return execExpectCAS(tag, err, "extend deadline for %s", id)
}

// ListRequestsPastDeadline returns non-terminal requests whose deadline has
// passed, oldest deadline first, capped at limit.
func (s *Store) ListRequestsPastDeadline(ctx context.Context, now time.Time, limit int) ([]travelrequest.TravelRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+`
		 FROM travel_requests
		 WHERE deadline <= $1
		   AND status NOT IN ($2, $3, $4, $5, $6)
		 ORDER BY deadline ASC
		 LIMIT $7`,
		now,
		travelrequest.StatusAgentConfirmed, travelrequest.StatusNoAgentsAvailable,
		travelrequest.StatusMatchingFailed, travelrequest.StatusExpired, travelrequest.StatusCancelled,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list requests past deadline: %w", err)
	}
	defer rows.Close()

	var out []travelrequest.TravelRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
