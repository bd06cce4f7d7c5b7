package types

import (
	"errors"
	"time"
)

const (
	// DefaultBaseURL is the default marketplace API base URL
	DefaultBaseURL = "http://localhost:5000/api"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// UserAgent is the user agent string
	UserAgent = "pluginhub-go/1.0.0"
)

// Common errors
var (
	// ErrNotAuthenticated is returned when no access token is stored
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnauthorized is returned for HTTP 401 responses
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned for HTTP 403 responses
	ErrForbidden = errors.New("forbidden")

	// ErrLoginFailed is returned when credentials are rejected
	ErrLoginFailed = errors.New("login failed")

	// ErrInvalidRequest is returned for requests rejected before sending
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRefreshFailed is returned when the access token could not be refreshed
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrRateLimited is returned when rate limited
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout is returned on timeout
	ErrTimeout = errors.New("request timeout")

	// ErrNotFound is returned when resource not found
	ErrNotFound = errors.New("resource not found")

	// ErrServerError is returned for server errors
	ErrServerError = errors.New("server error")
)
