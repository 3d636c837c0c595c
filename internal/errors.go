package internal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind is the closed classification of platform failures surfaced by
// this layer.
type ErrorKind int

const (
	ErrConfiguration ErrorKind = iota
	ErrAuthentication
	ErrChallengeRequired
	ErrTwoFactorRequired
	ErrRateLimited
	ErrNotFound
	ErrPlatformUnavailable
	ErrSessionInvalidated
)

// String returns the string representation of an ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrConfiguration:
		return "ConfigurationError"
	case ErrAuthentication:
		return "AuthenticationError"
	case ErrChallengeRequired:
		return "ChallengeRequired"
	case ErrTwoFactorRequired:
		return "TwoFactorRequired"
	case ErrRateLimited:
		return "RateLimited"
	case ErrNotFound:
		return "NotFound"
	case ErrPlatformUnavailable:
		return "PlatformUnavailable"
	case ErrSessionInvalidated:
		return "SessionInvalidated"
	default:
		return "Unknown"
	}
}

// GatewayError is the normalized error surfaced to callers in place of raw
// platform failures. It always carries the platform and kind so the routing
// layer can map it to an external status without inspecting internals.
type GatewayError struct {
	Kind       ErrorKind     `json:"kind"`
	Platform   Platform      `json:"platform"`
	Message    string        `json:"message"`
	StatusCode int           `json:"status_code,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	cause      error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	parts := []string{fmt.Sprintf("%s error (%s)", e.Platform, e.Kind)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}
	return strings.Join(parts, " - ")
}

// Unwrap exposes the raw platform error for errors.Is/As chains.
func (e *GatewayError) Unwrap() error {
	return e.cause
}

// IsRetryable reports whether the caller may retry the operation.
func (e *GatewayError) IsRetryable() bool {
	switch e.Kind {
	case ErrRateLimited, ErrPlatformUnavailable, ErrSessionInvalidated:
		return true
	case ErrAuthentication:
		// Recoverable login failures may be retried on the next
		// operation request, not in a loop.
		return true
	default:
		return false
	}
}

// NewGatewayError creates a GatewayError with a default suggestion for the kind.
func NewGatewayError(platform Platform, kind ErrorKind, message string) *GatewayError {
	return &GatewayError{
		Kind:       kind,
		Platform:   platform,
		Message:    message,
		Suggestion: defaultSuggestion(kind),
	}
}

// WithStatus records the upstream HTTP status that produced the error.
func (e *GatewayError) WithStatus(code int) *GatewayError {
	e.StatusCode = code
	return e
}

// WithRetryAfter records a platform-suggested backoff hint.
func (e *GatewayError) WithRetryAfter(d time.Duration) *GatewayError {
	e.RetryAfter = d
	return e
}

// WithSuggestion overrides the default suggestion text.
func (e *GatewayError) WithSuggestion(s string) *GatewayError {
	e.Suggestion = s
	return e
}

// WithCause attaches the raw platform error.
func (e *GatewayError) WithCause(err error) *GatewayError {
	e.cause = err
	return e
}

// AsGatewayError extracts a *GatewayError from an error chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// KindOf returns the normalized kind of err, or PlatformUnavailable when the
// error never went through classification.
func KindOf(err error) ErrorKind {
	if ge, ok := AsGatewayError(err); ok {
		return ge.Kind
	}
	return ErrPlatformUnavailable
}

func defaultSuggestion(kind ErrorKind) string {
	switch kind {
	case ErrConfiguration:
		return "Set the platform credentials in the environment before starting the service"
	case ErrAuthentication:
		return "Verify the configured credentials; the next request will retry the login"
	case ErrChallengeRequired:
		return "The platform demands out-of-band verification; complete it in a real browser or app, then restart with a fresh session"
	case ErrTwoFactorRequired:
		return "Two-factor login is not supported; disable 2FA for this account or supply a session cookie instead"
	case ErrRateLimited:
		return "Wait before retrying; consider widening the pacing window"
	case ErrNotFound:
		return "Verify the target user or content still exists and is public"
	case ErrPlatformUnavailable:
		return "Check the network connection and proxy settings, then retry"
	case ErrSessionInvalidated:
		return "The session was invalidated remotely; a re-login is attempted automatically"
	default:
		return ""
	}
}

// Common constructors.

// NewConfigurationError reports missing or invalid credentials for a platform.
func NewConfigurationError(platform Platform, message string) *GatewayError {
	return NewGatewayError(platform, ErrConfiguration, message)
}

// NewChallengeRequiredError reports a platform-issued interactive challenge.
func NewChallengeRequiredError(platform Platform, message string) *GatewayError {
	return NewGatewayError(platform, ErrChallengeRequired, message)
}

// NewRateLimitedError reports a platform rate-limit signal with an optional hint.
func NewRateLimitedError(platform Platform, retryAfter time.Duration) *GatewayError {
	e := NewGatewayError(platform, ErrRateLimited, "rate limited by platform")
	if retryAfter > 0 {
		e = e.WithRetryAfter(retryAfter).
			WithSuggestion(fmt.Sprintf("Wait %s before retrying", retryAfter))
	}
	return e
}

// NewNotFoundError reports absent target content or users.
func NewNotFoundError(platform Platform, target string) *GatewayError {
	return NewGatewayError(platform, ErrNotFound, fmt.Sprintf("target not found: %s", target))
}

// ValidationError represents input-shape errors detected before any platform
// call is attempted.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
