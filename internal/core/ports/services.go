package ports

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/pkg/apperror"
)

// EncryptionService seals backend tokens before they reach the vault.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenService issues and checks the desk session JWT handed to browsers.
type TokenService interface {
	Generate(sessionID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	SessionID string
}

// AuditService journals dispatched actions without blocking the caller.
type AuditService interface {
	Record(ctx context.Context, entry *domain.ActionAudit)
}

// --- Remote trading API ---

// Credentials exposes the bearer tokens of one desk session. Only login
// flows write tokens, so the interface offers read and clear only.
type Credentials interface {
	Token(ctx context.Context, role domain.Role) (string, error)
	Clear(ctx context.Context, role domain.Role) error
}

// RemoteRequest is one call to the trading API. Path is relative to the
// configured base URL.
type RemoteRequest struct {
	Role   domain.Role
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
	// Public requests are sent without a bearer token (sign-in, sign-up).
	Public bool
}

// FailureKind classifies an unsuccessful envelope.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureRejected is a business-rule refusal. Show the message, do not retry.
	FailureRejected
	// FailureTransient covers network errors, 5xx and unreadable bodies.
	FailureTransient
	// FailureUnauthenticated means the role's token was refused and cleared.
	FailureUnauthenticated
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureRejected:
		return "rejected"
	case FailureTransient:
		return "transient"
	case FailureUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Envelope is the normalised shape of every trading API response.
type Envelope struct {
	Success bool
	Message string
	// Data is the innermost payload after unwrapping data.data nesting.
	Data     json.RawMessage
	Count    int
	HasCount bool
	Status   int
	Failure  FailureKind
	Role     domain.Role
}

// Err converts an unsuccessful envelope into a displayable error.
func (e *Envelope) Err() error {
	if e.Success {
		return nil
	}
	switch e.Failure {
	case FailureUnauthenticated:
		return apperror.ErrUnauthenticated(string(e.Role))
	case FailureTransient:
		return apperror.Transient(e.Message)
	default:
		return apperror.Rejected(e.Message)
	}
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Gateway performs calls against the trading API. Unsuccessful responses are
// reported through the envelope; the error return is reserved for context
// cancellation and programmer errors.
type Gateway interface {
	Do(ctx context.Context, creds Credentials, req RemoteRequest) (*Envelope, error)
}
