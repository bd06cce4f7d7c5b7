package pluginhub

import (
	"errors"

	internalTypes "github.com/eshaffer321/pluginhub-go/internal/types"
)

var (
	// ErrNotAuthenticated is returned when authentication is required
	ErrNotAuthenticated = internalTypes.ErrNotAuthenticated

	// ErrUnauthorized is returned for HTTP 401 responses that were not
	// recovered by a token refresh
	ErrUnauthorized = internalTypes.ErrUnauthorized

	// ErrForbidden is returned for HTTP 403 responses
	ErrForbidden = internalTypes.ErrForbidden

	// ErrLoginFailed is returned when login fails
	ErrLoginFailed = internalTypes.ErrLoginFailed

	// ErrRefreshFailed is matched by every *RefreshError
	ErrRefreshFailed = internalTypes.ErrRefreshFailed

	// ErrRateLimited is returned when rate limited
	ErrRateLimited = internalTypes.ErrRateLimited

	// ErrTimeout is returned on timeout
	ErrTimeout = internalTypes.ErrTimeout

	// ErrNotFound is returned when resource not found
	ErrNotFound = internalTypes.ErrNotFound

	// ErrInvalidRequest is matched by every *ValidationError
	ErrInvalidRequest = internalTypes.ErrInvalidRequest

	// ErrServerError is returned for server errors
	ErrServerError = internalTypes.ErrServerError

	// ErrInvalidTransition is returned when an affiliate status change is
	// not allowed from the current status
	ErrInvalidTransition = errors.New("invalid affiliate status transition")

	// ErrCheckoutTimeout is returned when a subscription did not become
	// active before the wait timed out
	ErrCheckoutTimeout = errors.New("checkout timeout")

	// ErrChatNotConfigured is returned when no completion API key is set
	ErrChatNotConfigured = errors.New("chat is not configured")
)

// Error represents an API error
type Error = internalTypes.Error

// RefreshError is returned when a request got a 401 and renewing the
// access token failed. The stored token is left as it was.
type RefreshError = internalTypes.RefreshError

// ValidationError represents a rejected argument
type ValidationError = internalTypes.ValidationError

// NewError creates a new API error
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// IsAuthError checks if error is authentication related
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrLoginFailed) ||
		errors.Is(err, ErrRefreshFailed)
}

// IsRetryable checks if error is retryable
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServerError) {
		return true
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}

	return false
}
