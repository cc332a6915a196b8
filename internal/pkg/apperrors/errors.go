package apperrors

import (
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrMissingClientID  ErrorType = "MISSING_CLIENT_ID"
	ErrUnknownClient    ErrorType = "UNKNOWN_CLIENT"
	ErrClientDisabled   ErrorType = "CLIENT_DISABLED"
	ErrInvalidToken     ErrorType = "INVALID_TOKEN"
	ErrInvalidTokenType ErrorType = "INVALID_TOKEN_TYPE"
	ErrInsufficientRole ErrorType = "INSUFFICIENT_ROLE"
	ErrAuthFailed       ErrorType = "AUTH_FAILED"
	ErrValidation       ErrorType = "VALIDATION_FAILED"
	ErrConflict         ErrorType = "CONFLICT"
	ErrInvalidReference ErrorType = "INVALID_REFERENCE"
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrRateLimited      ErrorType = "RATE_LIMITED"
	ErrSystemPanic      ErrorType = "SYSTEM_PANIC"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application.
// It propagates unmodified from the pipeline stage that raised it
// to the final response envelope.
type AppError struct {
	Type       ErrorType      `json:"code"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewValidation(msg string) *AppError {
	return New(ErrValidation, msg, nil)
}

func NewAuthFailed(msg string) *AppError {
	return New(ErrAuthFailed, msg, nil)
}

// NewInsufficientRole carries the required and actual roles for diagnostics.
func NewInsufficientRole(required []string, actual string) *AppError {
	e := New(ErrInsufficientRole, "caller role does not satisfy route policy", nil)
	e.Details = map[string]any{
		"required_roles": required,
		"actual_role":    actual,
	}
	return e
}

// Classify maps an arbitrary error to an AppError. Typed errors pass through
// untouched; raw database errors are classified by message signature;
// everything else becomes INTERNAL_ERROR.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key") || strings.Contains(msg, "sqlstate 23505") ||
		strings.Contains(msg, "unique constraint"):
		return New(ErrConflict, "resource already exists", err)
	case strings.Contains(msg, "foreign key") || strings.Contains(msg, "sqlstate 23503"):
		return New(ErrInvalidReference, "referenced resource does not exist", err)
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrMissingClientID, ErrUnknownClient, ErrInvalidToken, ErrInvalidTokenType, ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrClientDisabled, ErrInsufficientRole:
		return http.StatusForbidden
	case ErrValidation, ErrInvalidReference:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrSystemPanic:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrMissingClientID:
		return "Send your registered client UUID in the X-Client-Id header."
	case ErrUnknownClient:
		return "Register the client via POST /auth/register-client."
	case ErrClientDisabled:
		return "Contact an administrator to re-enable the client."
	case ErrInvalidToken:
		return "Obtain a fresh token via POST /auth/login."
	case ErrInvalidTokenType:
		return "Use an access token here; refresh tokens are only valid on /auth/refresh."
	case ErrInsufficientRole:
		return "Request access from an administrator."
	case ErrAuthFailed:
		return "Check the email and password."
	case ErrRateLimited:
		return "Slow down and retry after a short delay."
	case ErrSystemPanic:
		return "Wait for system recovery."
	default:
		return ""
	}
}
