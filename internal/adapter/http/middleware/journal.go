package middleware

import (
	"net/http"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Journal records write requests that do not go through the action
// dispatcher (sign-in, sign-out, withdrawals, tickets) in the action
// journal, whatever their outcome. Entries outside the order lifecycle
// carry the role as actor.
func Journal(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		action, role := journalAction(c)
		if action == "" {
			return
		}

		status := c.Writer.Status()
		auditSvc.Record(c.Request.Context(), &domain.ActionAudit{
			ID:        uuid.New(),
			SessionID: c.GetString(CtxSessionID),
			Actor:     domain.Actor(role),
			Action:    action,
			SubjectID: c.Param("id"),
			Outcome:   outcomeForStatus(status),
			Message:   http.StatusText(status),
			CreatedAt: time.Now().UTC(),
		})
	}
}

func journalAction(c *gin.Context) (string, string) {
	role := c.Param("role")
	if r, ok := domain.ParseRole(role); ok {
		role = string(r)
	}
	switch c.FullPath() {
	case "/api/v1/sessions/:role/signin":
		return "session.signin", role
	case "/api/v1/sessions/:role/verify":
		return "session.verify", role
	case "/api/v1/signup":
		return "session.signup", string(domain.RoleUser)
	case "/api/v1/signup/verify":
		return "session.verify_signup", string(domain.RoleUser)
	case "/api/v1/sessions/:role":
		return "session.signout", role
	case "/api/v1/wallet/withdraw":
		return "wallet.withdraw", string(domain.RoleUser)
	case "/api/v1/tickets":
		return "ticket.raise", string(domain.RoleUser)
	case "/api/v1/staff/:role/tickets/:id":
		return "ticket.manage", role
	}
	return "", ""
}

func outcomeForStatus(status int) domain.ActionOutcome {
	switch {
	case status < http.StatusBadRequest:
		return domain.OutcomeConfirmed
	case status == http.StatusUnauthorized:
		return domain.OutcomeUnauthenticated
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return domain.OutcomeFailed
	default:
		return domain.OutcomeRejected
	}
}
