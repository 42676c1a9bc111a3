package response

import (
	"errors"
	"net/http"

	"p2p-desk/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Envelope is the body of every desk API response. UIs read success and
// message first, the same shape the trading backend speaks.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
}

// ErrorEnvelope adds the machine-readable error details.
type ErrorEnvelope struct {
	Envelope
	ErrorCode string `json:"error_code"`
	Retryable bool   `json:"retryable"`
	LoginRole string `json:"login_role,omitempty"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
	})
}

// Created sends a 201 response with data.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
	})
}

// Error sends an error response. *apperror.AppError values keep their
// status and message, anything else becomes a 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorEnvelope{
			Envelope: Envelope{
				Message:   appErr.Message,
				RequestID: getRequestID(c),
			},
			ErrorCode: appErr.Code,
			Retryable: appErr.Retryable(),
			LoginRole: appErr.LoginRole,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		Envelope: Envelope{
			Message:   "Internal server error",
			RequestID: getRequestID(c),
		},
		ErrorCode: "SYS_000",
	})
}

func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
