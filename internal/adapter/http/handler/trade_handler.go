package handler

import (
	"p2p-desk/internal/adapter/http/dto"
	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/service"
	"p2p-desk/pkg/apperror"
	"p2p-desk/pkg/response"

	"github.com/gin-gonic/gin"
)

// TradeHandler serves deal and order queues and the actions taken on them.
type TradeHandler struct {
	queues     *service.QueueService
	dispatcher *service.Dispatcher
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(queues *service.QueueService, dispatcher *service.Dispatcher) *TradeHandler {
	return &TradeHandler{queues: queues, dispatcher: dispatcher}
}

// ListDeals handles GET /api/v1/deals.
func (h *TradeHandler) ListDeals(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.queues.OpenDeals(c.Request.Context(), sess, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", page)
}

// PickDeal handles POST /api/v1/deals/:id/pick.
func (h *TradeHandler) PickDeal(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	res, err := h.dispatcher.PickDeal(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res.Message, res.Order)
}

// ListOrders handles GET /api/v1/orders/:actor.
func (h *TradeHandler) ListOrders(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	actor, ok := actorParam(c)
	if !ok {
		return
	}
	filter, q, ok := bindOrderQuery(c)
	if !ok {
		return
	}
	page, err := h.queues.Orders(c.Request.Context(), sess, actor, filter, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", page)
}

// Transition handles POST /api/v1/orders/:actor/:id/transition.
func (h *TradeHandler) Transition(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	actor, ok := actorParam(c)
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	target, ok := domain.ParseOrderStatus(req.Target)
	if !ok {
		response.Error(c, apperror.Validation("Unknown target status: "+req.Target))
		return
	}
	var from domain.OrderStatus
	if req.From != "" {
		if from, ok = domain.ParseOrderStatus(req.From); !ok {
			response.Error(c, apperror.Validation("Unknown status: "+req.From))
			return
		}
	}

	res, err := h.dispatcher.Transition(c.Request.Context(), sess, service.TransitionRequest{
		Actor:   actor,
		OrderID: c.Param("id"),
		From:    from,
		Target:  target,
		Receipt: req.Receipt,
		Remark:  req.Remark,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res.Message, res.Order)
}
