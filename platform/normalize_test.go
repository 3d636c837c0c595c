package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"socialgate/internal"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want internal.ErrorKind
	}{
		{"challenge marker", errors.New("400 Bad Request: challenge_required"), internal.ErrChallengeRequired},
		{"checkpoint marker", errors.New("checkpoint_required; please verify"), internal.ErrChallengeRequired},
		{"two factor marker", errors.New("two_factor_required"), internal.ErrTwoFactorRequired},
		{"rate limit copy", errors.New("please wait a few minutes before you try again"), internal.ErrRateLimited},
		{"login required", errors.New("login_required"), internal.ErrSessionInvalidated},
		{"user not found", errors.New("user_not_found"), internal.ErrNotFound},
		{"bad password", errors.New("bad_password"), internal.ErrAuthentication},
		{"connection refused", errors.New("dial tcp: connection refused"), internal.ErrPlatformUnavailable},
		{"browser navigation", errors.New("navigation failed: net::ERR_CONNECTION_RESET"), internal.ErrPlatformUnavailable},
		{"unknown", errors.New("something odd"), internal.ErrPlatformUnavailable},
		{"deadline", context.DeadlineExceeded, internal.ErrPlatformUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ge := Classify(internal.PlatformInstagram, tt.err)
			if ge == nil {
				t.Fatal("expected a classified error")
			}
			if ge.Kind != tt.want {
				t.Errorf("Classify(%q) kind = %s, want %s", tt.err, ge.Kind, tt.want)
			}
			if ge.Platform != internal.PlatformInstagram {
				t.Errorf("Classify() platform = %s, want instagram", ge.Platform)
			}
		})
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(internal.PlatformTikTok, nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

func TestClassifyPassesThroughGatewayError(t *testing.T) {
	orig := internal.NewNotFoundError(internal.PlatformTikTok, "video 42")
	got := Classify(internal.PlatformTikTok, orig)
	if got != orig {
		t.Errorf("Classify() rebuilt an already-normalized error")
	}
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   internal.ErrorKind
	}{
		{"429", 429, `{"message":"too many requests"}`, internal.ErrRateLimited},
		{"rate limit body on 400", 400, `{"message":"please wait a few minutes"}`, internal.ErrRateLimited},
		{"404", 404, `{}`, internal.ErrNotFound},
		{"not found body on 200 shape", 400, `{"message":"user_not_found"}`, internal.ErrNotFound},
		{"challenge on 400", 400, `{"message":"challenge_required"}`, internal.ErrChallengeRequired},
		{"two factor on 400", 400, `{"two_factor_required":true}`, internal.ErrTwoFactorRequired},
		{"401", 401, `{}`, internal.ErrSessionInvalidated},
		{"403 login required", 403, `{"message":"login_required"}`, internal.ErrSessionInvalidated},
		{"500", 500, ``, internal.ErrPlatformUnavailable},
		{"unmapped 4xx", 418, ``, internal.ErrPlatformUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ge := ClassifyResponse(internal.PlatformInstagram, &internal.RawResult{
				StatusCode: tt.status,
				Body:       []byte(tt.body),
			})
			if ge.Kind != tt.want {
				t.Errorf("ClassifyResponse(%d, %q) kind = %s, want %s", tt.status, tt.body, ge.Kind, tt.want)
			}
			if ge.StatusCode != tt.status {
				t.Errorf("ClassifyResponse() status = %d, want %d", ge.StatusCode, tt.status)
			}
		})
	}
}

func TestClassifyResponseRateLimitBackoff(t *testing.T) {
	ge := ClassifyResponse(internal.PlatformInstagram, &internal.RawResult{
		StatusCode: 429,
		Body:       []byte(`{"message":"please wait a few minutes before you try again"}`),
	})
	if ge.RetryAfter != 5*time.Minute {
		t.Errorf("RetryAfter = %s, want 5m", ge.RetryAfter)
	}
}

func TestDetectsInvalidation(t *testing.T) {
	tests := []struct {
		name string
		res  *internal.RawResult
		err  error
		want bool
	}{
		{"nil outcome", nil, nil, false},
		{"401 status", &internal.RawResult{StatusCode: 401}, nil, true},
		{"login_required body", &internal.RawResult{StatusCode: 403, Body: []byte(`{"message":"login_required"}`)}, nil, true},
		{"plain 404", &internal.RawResult{StatusCode: 404, Body: []byte(`{}`)}, nil, false},
		{"empty result list", &internal.RawResult{StatusCode: 200, Body: []byte(`{"items":[]}`)}, nil, false},
		{"invalidation error", nil, errors.New("session expired"), true},
		{"normalized invalidation", nil, internal.NewGatewayError(internal.PlatformTikTok, internal.ErrSessionInvalidated, "x"), true},
		{"normalized not found", nil, internal.NewNotFoundError(internal.PlatformTikTok, "x"), false},
		{"transport error", nil, errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectsInvalidation(tt.res, tt.err); got != tt.want {
				t.Errorf("DetectsInvalidation() = %v, want %v", got, tt.want)
			}
		})
	}
}
