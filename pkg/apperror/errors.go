package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the caller may react to it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindRejected
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindRejected:
		return "rejected"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Kind       Kind   `json:"-"`
	LoginRole  string `json:"login_role,omitempty"` // set on unauthenticated errors
	Err        error  `json:"-"`                    // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a user may safely resubmit the same action.
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransient
}

// New creates a new AppError.
func New(code string, message string, httpStatus int, kind Kind) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Kind:       kind,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, kind Kind, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Kind:       kind,
		Err:        err,
	}
}

// KindOf returns the Kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsUnauthenticated reports whether err is a session expiry for some role.
func IsUnauthenticated(err error) bool {
	return err != nil && KindOf(err) == KindUnauthenticated
}

// ---- Validation (VAL) ----

// Validation is a client-side input error caught before any network call.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest, KindValidation)
}

func ErrPasswordMismatch() *AppError {
	return New("VAL_002", "Passwords do not match.", http.StatusBadRequest, KindValidation)
}

// ---- Authentication (AUTH) ----

// ErrUnauthenticated signals that the backend no longer accepts the token of role.
func ErrUnauthenticated(role string) *AppError {
	e := New("AUTH_001", "Session expired, please sign in again.", http.StatusUnauthorized, KindUnauthenticated)
	e.LoginRole = role
	return e
}

func ErrInvalidSession() *AppError {
	return New("AUTH_002", "Invalid or expired desk session", http.StatusUnauthorized, KindUnauthenticated)
}

// ---- Business rejection (BIZ) ----

// Rejected carries a backend business-rule message verbatim.
func Rejected(message string) *AppError {
	if message == "" {
		message = "Request was rejected."
	}
	return New("BIZ_001", message, http.StatusUnprocessableEntity, KindRejected)
}

func ErrNotFound(entity string) *AppError {
	return New("BIZ_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound, KindRejected)
}

// ---- Transient (NET) ----

// Transient is a network-level failure that the user may retry manually.
func Transient(message string) *AppError {
	if message == "" {
		message = "Something went wrong, please try again."
	}
	return New("NET_001", message, http.StatusBadGateway, KindTransient)
}

func ErrMalformedPayload(err error) *AppError {
	return Wrap("NET_002", "Unexpected response from server, please try again.", http.StatusBadGateway, KindTransient, err)
}

// ---- Lifecycle (LIFE) ----

func ErrIllegalTransition(from, to string) *AppError {
	return New("LIFE_001", fmt.Sprintf("Cannot move from %s to %s.", from, to), http.StatusConflict, KindValidation)
}

func ErrActorNotPermitted(actor, to string) *AppError {
	return New("LIFE_002", fmt.Sprintf("A %s cannot move an order to %s.", actor, to), http.StatusForbidden, KindValidation)
}

func ErrTerminalState(status string) *AppError {
	return New("LIFE_003", fmt.Sprintf("Order is already %s.", status), http.StatusConflict, KindValidation)
}

// ---- Action guard (ACT) ----

func ErrActionInFlight() *AppError {
	return New("ACT_001", "This action is already being processed.", http.StatusConflict, KindValidation)
}

// ErrTooManyAttempts is returned by the desk throttle.
func ErrTooManyAttempts() *AppError {
	return New("ACT_002", "Too many attempts, please wait a moment.", http.StatusTooManyRequests, KindTransient)
}

// ---- Wallet (PAY) ----

func ErrInsufficientBalance() *AppError {
	return New("PAY_001", "Insufficient balance.", http.StatusUnprocessableEntity, KindValidation)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest, KindValidation)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, KindInternal, err)
}

func ErrStorage(err error) *AppError {
	return Wrap("SYS_002", "Session storage failure", http.StatusServiceUnavailable, KindTransient, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, KindInternal, err)
}
