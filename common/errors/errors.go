package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, message, nil)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message, nil)
}

// Forbidden is used for mutations attempted by someone other than the owner.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message, nil)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message, nil)
}

// PaymentFailed reports a payment the gateway did not confirm as successful.
func PaymentFailed(message string) *Error {
	return New(http.StatusBadRequest, message, nil)
}

// External wraps a failed or rejected call to a third-party service.
func External(message string, err error) *Error {
	return New(http.StatusBadGateway, message, err)
}

// Internal hides err behind a generic message; the cause stays available to logs via Unwrap.
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// As converts any error into an *Error, treating unknown errors as internal.
func As(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Respond writes err as a JSON body with the matching status code.
func Respond(c *gin.Context, err error) {
	appErr := As(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
