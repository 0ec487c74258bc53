package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Sentinel errors shared across the service. Callers compare with errors.Is.
var (
	ErrNotFound              = errors.New("complaint not found")
	ErrAuthFailure           = errors.New("incorrect secret")
	ErrComplaintClosed       = errors.New("complaint is closed")
	ErrStoreUnavailable      = errors.New("record store unavailable")
	ErrInvalidInput          = errors.New("invalid input")
	ErrForbidden             = errors.New("forbidden")
	ErrTooManyAttempts       = errors.New("too many failed attempts")
	ErrClassificationTimeout = errors.New("classification timed out")
	ErrClassificationFailure = errors.New("classification failed")
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return &DomainError{
		Code:       "VALIDATION_FAILED",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
		Err:        ErrInvalidInput,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
		Err:        ErrNotFound,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return &DomainError{Code: "FORBIDDEN", Message: message, HTTPStatus: http.StatusForbidden, Err: ErrForbidden}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// StoreUnavailable wraps a persistence failure so callers can match ErrStoreUnavailable
// while the driver error stays available for logging.
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return &DomainError{Code: "NOT_FOUND", Message: "complaint not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, ErrAuthFailure):
		return &DomainError{Code: "AUTH_FAILED", Message: "incorrect secret", HTTPStatus: http.StatusForbidden, Err: err}
	case errors.Is(err, ErrComplaintClosed):
		return &DomainError{Code: "COMPLAINT_CLOSED", Message: "complaint is closed and can no longer be changed", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, ErrTooManyAttempts):
		return &DomainError{Code: "TOO_MANY_ATTEMPTS", Message: "too many failed attempts, try again later", HTTPStatus: http.StatusTooManyRequests, Err: err}
	case errors.Is(err, ErrInvalidInput):
		return &DomainError{Code: "VALIDATION_FAILED", Message: err.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, ErrForbidden):
		return &DomainError{Code: "FORBIDDEN", Message: "forbidden", HTTPStatus: http.StatusForbidden, Err: err}
	case errors.Is(err, ErrStoreUnavailable):
		return &DomainError{Code: "STORE_UNAVAILABLE", Message: "service temporarily unavailable", HTTPStatus: http.StatusServiceUnavailable, Err: err}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
