package service

import (
	"context"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"

	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.ActionAuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, dispatched actions are only written to the logger.
func NewAuditService(repo ports.ActionAuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record journals a dispatched action asynchronously (fire-and-forget).
func (s *auditService) Record(ctx context.Context, entry *domain.ActionAudit) {
	e := *entry
	go func() {
		s.log.Info().
			Str("session_id", e.SessionID).
			Str("actor", string(e.Actor)).
			Str("action", e.Action).
			Str("subject_id", e.SubjectID).
			Str("to", e.ToStatus).
			Str("outcome", string(e.Outcome)).
			Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.WithoutCancel(ctx), &e); err != nil {
				s.log.Warn().Err(err).Str("action", e.Action).Msg("failed to persist action audit")
			}
		}
	}()
}
