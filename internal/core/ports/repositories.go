package ports

import (
	"context"
	"time"

	"p2p-desk/internal/core/domain"
)

// TokenStore persists the backend bearer tokens of a desk session, one slot
// per role. Load returns "" with a nil error when the slot is empty.
type TokenStore interface {
	Load(ctx context.Context, sessionID string, role domain.Role) (string, error)
	Save(ctx context.Context, sessionID string, role domain.Role, token string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string, role domain.Role) error
}

// SubmissionGuard refuses a second submission of the same action while the
// first one is still in flight.
type SubmissionGuard interface {
	// Acquire atomically claims key. Returns false if it is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ActionAuditRepository journals dispatched actions.
type ActionAuditRepository interface {
	Create(ctx context.Context, entry *domain.ActionAudit) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.ActionAudit, error)
}
