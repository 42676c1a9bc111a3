package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionOutcome is how the backend answered a dispatched action.
type ActionOutcome string

const (
	OutcomeConfirmed       ActionOutcome = "CONFIRMED"
	OutcomeRejected        ActionOutcome = "REJECTED"
	OutcomeFailed          ActionOutcome = "FAILED"
	OutcomeUnauthenticated ActionOutcome = "UNAUTHENTICATED"
)

// ActionAudit journals one state-changing action sent to the backend.
type ActionAudit struct {
	ID         uuid.UUID     `json:"id"`
	SessionID  string        `json:"session_id"`
	Actor      Actor         `json:"actor"`
	Action     string        `json:"action"`
	SubjectID  string        `json:"subject_id"`
	FromStatus string        `json:"from_status,omitempty"`
	ToStatus   string        `json:"to_status,omitempty"`
	Outcome    ActionOutcome `json:"outcome"`
	Message    string        `json:"message,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
