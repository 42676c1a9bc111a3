package postgres

import (
	"context"
	"fmt"

	"p2p-desk/internal/core/domain"
)

// defaultAuditLimit bounds ListBySession when no limit is given.
const defaultAuditLimit = 50

// ActionAuditRepo implements ports.ActionAuditRepository.
type ActionAuditRepo struct {
	pool Pool
}

// NewActionAuditRepo creates a new ActionAuditRepo.
func NewActionAuditRepo(pool Pool) *ActionAuditRepo {
	return &ActionAuditRepo{pool: pool}
}

// Create appends one journal entry.
func (r *ActionAuditRepo) Create(ctx context.Context, e *domain.ActionAudit) error {
	query := `INSERT INTO action_audit_logs (id, session_id, actor, action, subject_id, from_status, to_status, outcome, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.SessionID, string(e.Actor), e.Action, e.SubjectID,
		e.FromStatus, e.ToStatus, string(e.Outcome), e.Message, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action audit: %w", err)
	}
	return nil
}

// ListBySession returns the most recent entries of a desk session, newest first.
func (r *ActionAuditRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.ActionAudit, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	query := `SELECT id, session_id, actor, action, subject_id, from_status, to_status, outcome, message, created_at
		FROM action_audit_logs WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list action audit: %w", err)
	}
	defer rows.Close()

	var out []domain.ActionAudit
	for rows.Next() {
		var (
			e              domain.ActionAudit
			actor, outcome string
		)
		if err := rows.Scan(
			&e.ID, &e.SessionID, &actor, &e.Action, &e.SubjectID,
			&e.FromStatus, &e.ToStatus, &outcome, &e.Message, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan action audit: %w", err)
		}
		e.Actor = domain.Actor(actor)
		e.Outcome = domain.ActionOutcome(outcome)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action audit: %w", err)
	}
	return out, nil
}
