package igclient

import (
	"fmt"
	"time"
)

// errorTypeRateLimit is the meta.error_type the platform uses for quota exhaustion.
const errorTypeRateLimit = "OAuthRateLimitException"

// APIError is a non-retryable error reported by the platform.
type APIError struct {
	Endpoint   string
	StatusCode int
	Code       int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type == "" && e.Message == "" {
		return fmt.Sprintf("instagram %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("instagram %s: status %d: %s: %s", e.Endpoint, e.StatusCode, e.Type, e.Message)
}

// RateLimitError means the quota of the app or account is exhausted.
// RetryAfter is zero when the platform gave no hint.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	msg := "instagram " + e.Endpoint + ": rate limited"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}
