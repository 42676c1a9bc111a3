package handler

import (
	"p2p-desk/internal/adapter/http/dto"
	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/service"
	"p2p-desk/pkg/apperror"
	"p2p-desk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	wallet *service.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(wallet *service.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	bal, err := h.wallet.Balance(c.Request.Context(), sess)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", bal)
}

// History handles GET /api/v1/wallet/history.
func (h *WalletHandler) History(c *gin.Context) {
	h.history(c, domain.RoleUser)
}

// AdminHistory handles GET /api/v1/admin/wallet/history.
func (h *WalletHandler) AdminHistory(c *gin.Context) {
	h.history(c, domain.RoleAdmin)
}

func (h *WalletHandler) history(c *gin.Context, role domain.Role) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.wallet.WalletHistory(c.Request.Context(), sess, role, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", page)
}

// Income handles GET /api/v1/wallet/income.
func (h *WalletHandler) Income(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.wallet.IncomeHistory(c.Request.Context(), sess, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", page)
}

// Withdrawals handles GET /api/v1/wallet/withdrawals.
func (h *WalletHandler) Withdrawals(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.wallet.Withdrawals(c.Request.Context(), sess, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", page)
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}
	w, msg, err := h.wallet.PlaceWithdraw(c.Request.Context(), sess, service.WithdrawRequest{
		Amount:  amount,
		Address: req.Address,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg, dto.WithdrawResponse{
		ID:      w.ID,
		Amount:  w.Amount.String(),
		Address: w.Address,
		Status:  string(w.Status),
	})
}
