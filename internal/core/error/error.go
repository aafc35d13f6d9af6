package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "not found"
	// ProviderErrorMessage describes completion provider failures.
	ProviderErrorMessage = "completion provider request failed"
	// RateLimitMessage is returned when a client sends messages too quickly.
	RateLimitMessage = "rate limit exceeded, please wait before sending more messages"
	// SessionLimitMessage is returned when a conversation has reached its turn cap.
	SessionLimitMessage = "session message limit reached, please start a new session"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// NewValidation reports a malformed or incomplete client request.
func NewValidation(message string) *AppError {
	return New(nil, http.StatusBadRequest, message)
}

// NewRateLimited reports that the caller exceeded the per-minute message budget.
func NewRateLimited() *AppError {
	return New(nil, http.StatusTooManyRequests, RateLimitMessage)
}

// NewSessionLimit reports that a session has used up its allowed turns.
func NewSessionLimit() *AppError {
	return New(nil, http.StatusBadRequest, SessionLimitMessage)
}

// WrapProvider wraps a completion provider failure. The underlying cause is
// kept in the chain so the handler can fold the provider's text into the
// response; this is the only class that propagates the cause to the caller.
func WrapProvider(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, ProviderErrorMessage)
}

// WrapInternal converts an unexpected error into a generic 500 without
// leaking details beyond the short message.
func WrapInternal(err error) *AppError {
	if err == nil {
		return nil
	}
	return New(err, http.StatusInternalServerError, SystemErrorMessage)
}

// StatusOf extracts the HTTP status from an error chain, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
