package service

import (
	"context"
	"html"
	"net/http"
	"net/url"
	"strings"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	maxTicketSubject = 120
	maxTicketMessage = 2000
)

// RaiseTicketRequest opens a support ticket.
type RaiseTicketRequest struct {
	Subject    string
	Message    string
	OrderID    string
	Attachment string
}

// ManageTicketRequest moves a ticket from From, the status the caller last
// saw, to Target.
type ManageTicketRequest struct {
	TicketID string
	From     domain.TicketStatus
	Target   domain.TicketStatus
	Remark   string
}

var ticketListPaths = map[domain.Role]string{
	domain.RoleAdmin:    ports.PathAdminTicketList,
	domain.RoleSubAdmin: ports.PathSubAdminTicketList,
}

var ticketManagePaths = map[domain.Role]string{
	domain.RoleAdmin:    ports.PathAdminManageTicket,
	domain.RoleSubAdmin: ports.PathSubAdminManageTicket,
}

// TicketService raises and moderates support tickets.
type TicketService struct {
	gw     ports.Gateway
	claims submissions
	limit  int
	log    zerolog.Logger
}

// NewTicketService creates a ticket service. guard may be nil.
func NewTicketService(gw ports.Gateway, guard ports.SubmissionGuard, limit int, log zerolog.Logger) *TicketService {
	if limit < 1 {
		limit = DefaultPageLimit
	}
	return &TicketService{gw: gw, claims: newSubmissions(guard, 0, log), limit: limit, log: log}
}

// Raise opens a ticket for the signed-in user. A second ticket of the same
// session is refused while the first is being sent.
func (s *TicketService) Raise(ctx context.Context, sess *Session, req RaiseTicketRequest) (*domain.Ticket, string, error) {
	subject := cleanText(req.Subject)
	message := cleanText(req.Message)
	switch {
	case subject == "":
		return nil, "", apperror.Validation("Subject is required.")
	case message == "":
		return nil, "", apperror.Validation("Message is required.")
	case len(subject) > maxTicketSubject:
		return nil, "", apperror.Validation("Subject is too long.")
	case len(message) > maxTicketMessage:
		return nil, "", apperror.Validation("Message is too long.")
	}
	attachment := strings.TrimSpace(req.Attachment)
	if attachment != "" {
		if u, err := url.ParseRequestURI(attachment); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, "", apperror.Validation("Attachment must be an http(s) URL.")
		}
	}

	release, err := s.claims.claim(ctx, sess.ID()+":ticket")
	if err != nil {
		return nil, "", err
	}
	defer release()

	body := map[string]string{"subject": subject, "message": message}
	if id := strings.TrimSpace(req.OrderID); id != "" {
		body["orderId"] = id
	}
	if attachment != "" {
		body["attachment"] = attachment
	}
	env, err := s.gw.Do(ctx, sess, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodPost,
		Path:   ports.PathRaiseTicket,
		Body:   body,
	})
	if err != nil {
		return nil, "", err
	}
	if !env.Success {
		return nil, "", env.Err()
	}

	t := &domain.Ticket{Subject: subject, Message: message, OrderID: body["orderId"], Attachment: attachment, Status: domain.TicketOpen}
	if echoed, ok := embedded[domain.Ticket](env.Data, "ticket", func(x domain.Ticket) bool { return x.ID != "" }); ok {
		t = &echoed
	}
	return t, env.Message, nil
}

// History lists the user's own tickets.
func (s *TicketService) History(ctx context.Context, sess *Session, q PageQuery) (domain.Page[domain.Ticket], error) {
	return fetchPage[domain.Ticket](ctx, s.gw, sess, ports.RemoteRequest{
		Role:   domain.RoleUser,
		Method: http.MethodGet,
		Path:   ports.PathTicketHistory,
	}, q.normalize(s.limit))
}

// List returns the moderation queue of a staff role.
func (s *TicketService) List(ctx context.Context, sess *Session, role domain.Role, q PageQuery) (domain.Page[domain.Ticket], error) {
	path, ok := ticketListPaths[role]
	if !ok {
		return domain.Page[domain.Ticket]{}, apperror.ErrActorNotPermitted(string(role), "ticket list")
	}
	return fetchPage[domain.Ticket](ctx, s.gw, sess, ports.RemoteRequest{
		Role:   role,
		Method: http.MethodGet,
		Path:   path,
	}, q.normalize(s.limit))
}

// Manage moves a ticket after checking the move locally.
func (s *TicketService) Manage(ctx context.Context, sess *Session, role domain.Role, req ManageTicketRequest) (string, error) {
	if req.TicketID == "" {
		return "", apperror.Validation("Ticket id is required.")
	}
	if req.From == "" {
		return "", apperror.Validation("Current ticket status is required.")
	}
	if err := domain.CheckTicketTransition(role, req.From, req.Target); err != nil {
		return "", err
	}

	env, err := s.gw.Do(ctx, sess, ports.RemoteRequest{
		Role:   role,
		Method: http.MethodPost,
		Path:   ticketManagePaths[role],
		Body: map[string]string{
			"ticketId": req.TicketID,
			"status":   string(req.Target),
			"remark":   cleanText(req.Remark),
		},
	})
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", env.Err()
	}
	s.log.Info().Str("ticket_id", req.TicketID).Str("role", string(role)).Str("to", string(req.Target)).Msg("ticket updated")
	return env.Message, nil
}

func cleanText(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
