package handler

import (
	"p2p-desk/internal/adapter/http/dto"
	"p2p-desk/internal/adapter/http/middleware"
	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/service"
	"p2p-desk/pkg/apperror"
	"p2p-desk/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionHandler handles the login flows of the three roles.
type SessionHandler struct {
	sessions *service.SessionService
	wallet   *service.WalletService
}

// NewSessionHandler creates a new SessionHandler. wallet may be nil.
func NewSessionHandler(sessions *service.SessionService, wallet *service.WalletService) *SessionHandler {
	return &SessionHandler{sessions: sessions, wallet: wallet}
}

// SignIn handles POST /api/v1/sessions/:role/signin. A caller that already
// holds a desk session adds the role to it.
func (h *SessionHandler) SignIn(c *gin.Context) {
	role, ok := roleParam(c)
	if !ok {
		return
	}
	var req dto.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	res, err := h.sessions.SignIn(c.Request.Context(), middleware.SessionFrom(c), role, service.SignInRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, res)
}

// Verify handles POST /api/v1/sessions/:role/verify.
func (h *SessionHandler) Verify(c *gin.Context) {
	role, ok := roleParam(c)
	if !ok {
		return
	}
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	res, err := h.sessions.Verify(c.Request.Context(), middleware.SessionFrom(c), role, service.VerifyRequest{
		Email: req.Email,
		OTP:   req.OTP,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, res)
}

// SignUp handles POST /api/v1/signup.
func (h *SessionHandler) SignUp(c *gin.Context) {
	var req dto.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	msg, err := h.sessions.SignUp(c.Request.Context(), service.SignUpRequest{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		ReferralCode:    req.ReferralCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg, dto.SignUpResponse{Email: req.Email})
}

// VerifySignup handles POST /api/v1/signup/verify.
func (h *SessionHandler) VerifySignup(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	res, err := h.sessions.VerifySignup(c.Request.Context(), middleware.SessionFrom(c), service.VerifyRequest{
		Email: req.Email,
		OTP:   req.OTP,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, res)
}

// Roles handles GET /api/v1/sessions, listing the roles signed in.
func (h *SessionHandler) Roles(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	roles, err := sess.Roles(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if roles == nil {
		roles = []domain.Role{}
	}
	response.OK(c, "", gin.H{"roles": roles})
}

// Logout handles DELETE /api/v1/sessions/:role.
func (h *SessionHandler) Logout(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	role, ok := roleParam(c)
	if !ok {
		return
	}
	if err := h.sessions.Logout(c.Request.Context(), sess, role); err != nil {
		response.Error(c, err)
		return
	}
	if role == domain.RoleUser && h.wallet != nil {
		h.wallet.Forget(sess.ID())
	}
	response.OK(c, "Signed out.", gin.H{"role": role})
}

func (h *SessionHandler) respond(c *gin.Context, res *service.SignInResult) {
	if res.SessionID != "" {
		c.Set(middleware.CtxSessionID, res.SessionID)
	}
	response.OK(c, res.Message, res)
}
