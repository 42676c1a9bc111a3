package domain

import (
	"encoding/json"
	"strings"
	"time"

	"p2p-desk/pkg/apperror"
)

// TicketStatus is the state of a support ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketClosed     TicketStatus = "CLOSED"
)

// ParseTicketStatus normalises a wire status. RESOLVED is treated as CLOSED.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	v := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_")
	switch v {
	case "OPEN":
		return TicketOpen, true
	case "IN_PROGRESS", "INPROGRESS":
		return TicketInProgress, true
	case "CLOSED", "RESOLVED":
		return TicketClosed, true
	}
	return TicketStatus(v), false
}

func (s *TicketStatus) UnmarshalText(b []byte) error {
	*s, _ = ParseTicketStatus(string(b))
	return nil
}

// Ticket is a support request raised by a user.
type Ticket struct {
	ID         string       `json:"id"`
	Subject    string       `json:"subject"`
	Message    string       `json:"message"`
	OrderID    string       `json:"orderId,omitempty"`
	Attachment string       `json:"attachment,omitempty"`
	Status     TicketStatus `json:"status"`
	CreatedAt  *time.Time   `json:"createdAt,omitempty"`
}

func (t *Ticket) UnmarshalJSON(b []byte) error {
	type plain Ticket
	var wire struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*t = Ticket(wire.plain)
	if t.ID == "" {
		t.ID = wire.MongoID
	}
	if t.Status == "" {
		t.Status = TicketOpen
	}
	return nil
}

// CheckTicketTransition validates a ticket move requested by a staff role.
func CheckTicketTransition(role Role, from, to TicketStatus) error {
	if role != RoleAdmin && role != RoleSubAdmin {
		return apperror.ErrActorNotPermitted(string(role), string(to))
	}
	switch {
	case from == TicketClosed:
		return apperror.ErrTerminalState(string(from))
	case from == TicketOpen && (to == TicketInProgress || to == TicketClosed):
		return nil
	case from == TicketInProgress && to == TicketClosed:
		return nil
	}
	return apperror.ErrIllegalTransition(string(from), string(to))
}
