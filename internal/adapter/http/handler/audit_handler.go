package handler

import (
	"p2p-desk/internal/adapter/http/dto"
	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"
	"p2p-desk/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultAuditLimit = 50

// AuditHandler lists the action journal of the calling session.
type AuditHandler struct {
	repo ports.ActionAuditRepository
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(repo ports.ActionAuditRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// List handles GET /api/v1/audit.
func (h *AuditHandler) List(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var q dto.AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultAuditLimit
	}
	entries, err := h.repo.ListBySession(c.Request.Context(), sess.ID(), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []domain.ActionAudit{}
	}
	response.OK(c, "", entries)
}
