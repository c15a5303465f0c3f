package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/wandero/matching/internal/domain/agentprofile"
	"github.com/wandero/matching/internal/domain/match"
	"github.com/wandero/matching/internal/domain/travelrequest"
)

const matchColumns = `id, request_id, agent_id, tier, score, reasons, status, version, matched_at, expires_at, resolved_at`

func scanMatch(row scannable) (match.Match, error) {
	var m match.Match
	err := row.Scan(&m.ID, &m.RequestID, &m.AgentID, &m.Tier, &m.Score, &m.Reasons,
		&m.Status, &m.Version, &m.MatchedAt, &m.ExpiresAt, &m.ResolvedAt)
	return m, err
}

// CreateMatches persists a batch of proposed matches in one transaction so a
// matching run either records its full slate or nothing.
func (s *Store) CreateMatches(ctx context.Context, matches []match.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create matches: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range matches {
		m := &matches[i]
		_, err := tx.Exec(ctx,
			`INSERT INTO agent_matches (id, request_id, agent_id, tier, score, reasons, status, version, matched_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			m.ID, m.RequestID, m.AgentID, m.Tier, m.Score, pgTextArray(m.Reasons),
			m.Status, m.Version, m.MatchedAt, m.ExpiresAt)
		if err != nil {
			return fmt.Errorf("insert match %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create matches: %w", err)
	}
	return nil
}

func (s *Store) GetMatch(ctx context.Context, id match.MatchID) (*match.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM agent_matches WHERE id = $1`, id)

	m, err := scanMatch(row)
	if err != nil {
		return nil, notFoundWrap(err, "get match %s", id)
	}
	return &m, nil
}

func (s *Store) ListMatchesByRequest(ctx context.Context, id travelrequest.RequestID) ([]match.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM agent_matches WHERE request_id = $1
		 ORDER BY score DESC, matched_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list matches for %s: %w", id, err)
	}
	defer rows.Close()

	var out []match.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TransitionMatch resolves a match, guarded by version. The resolved_at stamp
// is set exactly once; a match never leaves a resolved state.
func (s *Store) TransitionMatch(ctx context.Context, id match.MatchID, to match.Status, version int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_matches
		 SET status = $2, version = version + 1, resolved_at = COALESCE(resolved_at, now())
		 WHERE id = $1 AND version = $3`,
		id, to, version)
	return execExpectCAS(tag, err, "transition match %s to %s", id, to)
}

// ExtendMatchExpiry pushes the response window of an outstanding match.
func (s *Store) ExtendMatchExpiry(ctx context.Context, id match.MatchID, expiresAt time.Time, version int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_matches
		 SET expires_at = $2, version = version + 1
		 WHERE id = $1 AND version = $3 AND status = $4`,
		id, expiresAt, version, match.StatusProposed)
	return execExpectCAS(tag, err, "extend expiry for match %s", id)
}

// ListExpiredMatches returns still-proposed matches whose response window has
// passed, oldest expiry first, capped at limit.
func (s *Store) ListExpiredMatches(ctx context.Context, now time.Time, limit int) ([]match.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM agent_matches
		 WHERE status = $1 AND expires_at <= $2
		 ORDER BY expires_at ASC
		 LIMIT $3`,
		match.StatusProposed, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired matches: %w", err)
	}
	defer rows.Close()

	var out []match.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordDecline appends an immutable decline record.
func (s *Store) RecordDecline(ctx context.Context, d *match.Decline) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_declines (match_id, request_id, agent_id, reason, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.MatchID, d.RequestID, d.AgentID, d.Reason, d.Note, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("record decline for match %s: %w", d.MatchID, err)
	}
	return nil
}

// DeclinedAgents returns the distinct agents who have declined or timed out
// on this request, so retry attempts exclude them.
func (s *Store) DeclinedAgents(ctx context.Context, id travelrequest.RequestID) ([]agentprofile.AgentID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT agent_id FROM agent_declines WHERE request_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("list declined agents for %s: %w", id, err)
	}
	defer rows.Close()

	var out []agentprofile.AgentID
	for rows.Next() {
		var a agentprofile.AgentID
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan agent id: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
