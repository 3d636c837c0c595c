package platform

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"socialgate/internal"
)

// The platforms expose no stable error contract; classification works off the
// markers their private APIs and web payloads are known to emit.

var challengeMarkers = []string{
	"challenge_required",
	"checkpoint_required",
	"checkpoint_challenge_required",
	"suspicious login",
	"verify your identity",
	"verify/",
}

var twoFactorMarkers = []string{
	"two_factor_required",
	"twofactorrequired",
	"two-factor",
}

var invalidationMarkers = []string{
	"login_required",
	"loginrequired",
	"not logged in",
	"session expired",
	"user has logged out",
}

var rateLimitMarkers = []string{
	"please wait a few minutes",
	"pleasewaitfewminutes",
	"rate limit",
	"too many requests",
	"spam",
}

var notFoundMarkers = []string{
	"user_not_found",
	"media not found",
	"content is unavailable",
	"item not found",
}

var authFailureMarkers = []string{
	"bad_password",
	"invalid_user",
	"incorrect password",
	"ms_token",
	"invalid credentials",
}

// Classify maps a raw platform failure onto the closed error taxonomy.
// Already-normalized errors pass through unchanged.
func Classify(platform internal.Platform, err error) *internal.GatewayError {
	if err == nil {
		return nil
	}
	if ge, ok := internal.AsGatewayError(err); ok {
		return ge
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return internal.NewGatewayError(platform, internal.ErrPlatformUnavailable, "platform call timed out").WithCause(err)
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, twoFactorMarkers):
		return internal.NewGatewayError(platform, internal.ErrTwoFactorRequired, "two-factor authentication required").WithCause(err)
	case containsAny(msg, challengeMarkers):
		return internal.NewChallengeRequiredError(platform, "platform issued a login challenge").WithCause(err)
	case containsAny(msg, rateLimitMarkers):
		return internal.NewRateLimitedError(platform, 0).WithCause(err)
	case containsAny(msg, invalidationMarkers):
		return internal.NewGatewayError(platform, internal.ErrSessionInvalidated, "session invalidated remotely").WithCause(err)
	case containsAny(msg, notFoundMarkers):
		return internal.NewGatewayError(platform, internal.ErrNotFound, err.Error()).WithCause(err)
	case containsAny(msg, authFailureMarkers):
		return internal.NewGatewayError(platform, internal.ErrAuthentication, err.Error()).WithCause(err)
	case isTransportFailure(msg):
		return internal.NewGatewayError(platform, internal.ErrPlatformUnavailable, err.Error()).WithCause(err)
	default:
		return internal.NewGatewayError(platform, internal.ErrPlatformUnavailable, err.Error()).WithCause(err)
	}
}

// ClassifyResponse maps a non-success platform response onto the taxonomy
// using the status code plus any recognizable body markers.
func ClassifyResponse(platform internal.Platform, res *internal.RawResult) *internal.GatewayError {
	body := strings.ToLower(string(res.Body))

	switch {
	case containsAny(body, twoFactorMarkers):
		return internal.NewGatewayError(platform, internal.ErrTwoFactorRequired, "two-factor authentication required").WithStatus(res.StatusCode)
	case containsAny(body, challengeMarkers):
		return internal.NewChallengeRequiredError(platform, "platform issued a login challenge").WithStatus(res.StatusCode)
	case containsAny(body, invalidationMarkers):
		return internal.NewGatewayError(platform, internal.ErrSessionInvalidated, "session invalidated remotely").WithStatus(res.StatusCode)
	case res.StatusCode == http.StatusTooManyRequests || containsAny(body, rateLimitMarkers):
		return internal.NewRateLimitedError(platform, suggestedBackoff(res)).WithStatus(res.StatusCode)
	case res.StatusCode == http.StatusNotFound || containsAny(body, notFoundMarkers):
		return internal.NewGatewayError(platform, internal.ErrNotFound, "target not found").WithStatus(res.StatusCode)
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return internal.NewGatewayError(platform, internal.ErrSessionInvalidated, "platform rejected the session").WithStatus(res.StatusCode)
	case res.StatusCode >= 500:
		return internal.NewGatewayError(platform, internal.ErrPlatformUnavailable, "platform server error").WithStatus(res.StatusCode)
	default:
		return internal.NewGatewayError(platform, internal.ErrPlatformUnavailable, "unexpected platform response").WithStatus(res.StatusCode)
	}
}

// DetectsInvalidation reports whether a call outcome is a remote session
// invalidation, distinguishable from not-found and empty results.
func DetectsInvalidation(res *internal.RawResult, err error) bool {
	if err != nil {
		if ge, ok := internal.AsGatewayError(err); ok {
			return ge.Kind == internal.ErrSessionInvalidated
		}
		return containsAny(strings.ToLower(err.Error()), invalidationMarkers)
	}
	if res == nil {
		return false
	}
	if res.StatusCode == http.StatusUnauthorized {
		return true
	}
	return containsAny(strings.ToLower(string(res.Body)), invalidationMarkers)
}

func suggestedBackoff(res *internal.RawResult) time.Duration {
	// The private APIs rarely send Retry-After through to the body; five
	// minutes matches the platform's own "please wait a few minutes" copy.
	if containsAny(strings.ToLower(string(res.Body)), rateLimitMarkers) {
		return 5 * time.Minute
	}
	return 0
}

func isTransportFailure(msg string) bool {
	transportMarkers := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"navigation failed",
		"net::err",
	}
	return containsAny(msg, transportMarkers)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
