package handler

import (
	"p2p-desk/internal/adapter/http/dto"
	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/service"
	"p2p-desk/pkg/apperror"
	"p2p-desk/pkg/response"

	"github.com/gin-gonic/gin"
)

// TicketHandler handles support tickets for users and staff.
type TicketHandler struct {
	tickets *service.TicketService
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// Raise handles POST /api/v1/tickets.
func (h *TicketHandler) Raise(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req dto.RaiseTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	t, msg, err := h.tickets.Raise(c.Request.Context(), sess, service.RaiseTicketRequest{
		Subject:    req.Subject,
		Message:    req.Message,
		OrderID:    req.OrderID,
		Attachment: req.Attachment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg, t)
}

// History handles GET /api/v1/tickets.
func (h *TicketHandler) History(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.tickets.History(c.Request.Context(), sess, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", page)
}

// List handles GET /api/v1/staff/:role/tickets.
func (h *TicketHandler) List(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	role, ok := roleParam(c)
	if !ok {
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.tickets.List(c.Request.Context(), sess, role, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", page)
}

// Manage handles PATCH /api/v1/staff/:role/tickets/:id.
func (h *TicketHandler) Manage(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	role, ok := roleParam(c)
	if !ok {
		return
	}
	var req dto.ManageTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	target, ok := domain.ParseTicketStatus(req.Status)
	if !ok {
		response.Error(c, apperror.Validation("Unknown ticket status: "+req.Status))
		return
	}
	from, ok := domain.ParseTicketStatus(req.From)
	if !ok {
		response.Error(c, apperror.Validation("Unknown ticket status: "+req.From))
		return
	}

	msg, err := h.tickets.Manage(c.Request.Context(), sess, role, service.ManageTicketRequest{
		TicketID: c.Param("id"),
		From:     from,
		Target:   target,
		Remark:   req.Remark,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, msg, gin.H{"id": c.Param("id"), "status": target})
}
