package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"socialgate/internal"
	"socialgate/utils"
)

const (
	instagramAPIBase = "https://i.instagram.com/api/v1"
	instagramAppID   = "567067343352427"
	maxResponseBytes = 8 << 20
)

// ProtocolClient is the protocol-level PlatformClient for Instagram. It
// speaks the private mobile API directly over HTTP with a persisted device
// fingerprint and session cookies.
type ProtocolClient struct {
	http *utils.HTTPClient
}

// ProtocolClientConfig configures the protocol-level client.
type ProtocolClientConfig struct {
	ProxyURL string
	Timeout  time.Duration

	// MaxRetries bounds the transport's attempt budget; zero or negative
	// keeps the default.
	MaxRetries int
}

// NewProtocolClient builds the client on the shared retrying HTTP transport.
func NewProtocolClient(cfg ProtocolClientConfig) *ProtocolClient {
	retry := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	httpCfg := &utils.HTTPClientConfig{
		Timeout:     cfg.Timeout,
		ProxyURL:    cfg.ProxyURL,
		RetryConfig: retry,
	}
	return &ProtocolClient{http: utils.NewHTTPClientWithConfig(httpCfg)}
}

// Authenticate establishes a usable session. A provided session ID is adopted
// and verified with a cheap account call; otherwise a username/password login
// is performed. The device identity survives across sessions through the
// prior artifact so the platform sees a stable fingerprint.
func (c *ProtocolClient) Authenticate(ctx context.Context, cred internal.Credential, prior *internal.SessionArtifact) (*internal.SessionArtifact, error) {
	artifact := &internal.SessionArtifact{
		Platform:  internal.PlatformInstagram,
		Cookies:   map[string]string{},
		CreatedAt: time.Now(),
	}
	if prior != nil && prior.DeviceID != "" {
		artifact.DeviceID = prior.DeviceID
		artifact.PhoneID = prior.PhoneID
		artifact.UserAgent = prior.UserAgent
	} else {
		device := randomMobileDevice()
		artifact.DeviceID = "android-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		artifact.PhoneID = uuid.NewString()
		artifact.UserAgent = device.userAgent()
	}

	if cred.SessionID != "" {
		artifact.Cookies["sessionid"] = cred.SessionID
		if err := c.verifySession(ctx, artifact); err != nil {
			return nil, err
		}
		return artifact, nil
	}

	if err := c.login(ctx, cred, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// verifySession confirms an adopted session ID is still accepted.
func (c *ProtocolClient) verifySession(ctx context.Context, artifact *internal.SessionArtifact) error {
	res, err := c.Call(ctx, artifact, internal.CallSpec{
		Name:   "current_user",
		Method: http.MethodGet,
		Path:   "/accounts/current_user/",
	})
	if err != nil {
		return Classify(internal.PlatformInstagram, err)
	}
	if res.StatusCode != http.StatusOK {
		if gerr := authFailureFromBody(res); gerr != nil {
			return gerr
		}
		return internal.NewGatewayError(internal.PlatformInstagram, internal.ErrAuthentication,
			fmt.Sprintf("session verification rejected with status %d", res.StatusCode))
	}
	artifact.AccountID = gjson.GetBytes(res.Body, "user.pk").String()
	return nil
}

// login performs a username/password login and captures the session cookies.
func (c *ProtocolClient) login(ctx context.Context, cred internal.Credential, artifact *internal.SessionArtifact) error {
	form := map[string][]string{
		"username":            {cred.Username},
		"enc_password":        {"#PWD_INSTAGRAM:0:" + fmt.Sprint(time.Now().Unix()) + ":" + cred.Secret},
		"device_id":           {artifact.DeviceID},
		"phone_id":            {artifact.PhoneID},
		"login_attempt_count": {"0"},
	}

	resp, err := c.http.PostForm(ctx, instagramAPIBase+"/accounts/login/", form, c.headers(artifact))
	if err != nil {
		return Classify(internal.PlatformInstagram, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read login response: %w", err)
	}

	res := &internal.RawResult{StatusCode: resp.StatusCode, Body: body}
	if resp.StatusCode != http.StatusOK {
		if gerr := authFailureFromBody(res); gerr != nil {
			return gerr
		}
		return internal.NewGatewayError(internal.PlatformInstagram, internal.ErrAuthentication,
			fmt.Sprintf("login rejected with status %d", resp.StatusCode))
	}
	if gjson.GetBytes(body, "status").String() != "ok" {
		if gerr := authFailureFromBody(res); gerr != nil {
			return gerr
		}
		return internal.NewGatewayError(internal.PlatformInstagram, internal.ErrAuthentication, "login response did not report success")
	}

	for _, ck := range resp.Cookies() {
		if ck.Value != "" {
			artifact.Cookies[ck.Name] = ck.Value
		}
	}
	if artifact.Cookies["sessionid"] == "" {
		return internal.NewGatewayError(internal.PlatformInstagram, internal.ErrAuthentication, "login succeeded but no session cookie was issued")
	}
	artifact.AccountID = gjson.GetBytes(body, "logged_in_user.pk").String()
	return nil
}

// authFailureFromBody maps the structured failure payloads the platform
// returns during authentication, or nil when no known marker is present.
func authFailureFromBody(res *internal.RawResult) *internal.GatewayError {
	body := strings.ToLower(string(res.Body))
	switch {
	case strings.Contains(body, "two_factor_required"):
		return internal.NewGatewayError(internal.PlatformInstagram, internal.ErrTwoFactorRequired,
			"account requires a two-factor code that cannot be supplied automatically")
	case strings.Contains(body, "challenge_required"), strings.Contains(body, "checkpoint_required"):
		return internal.NewChallengeRequiredError(internal.PlatformInstagram, "platform issued a verification challenge during login")
	case strings.Contains(body, "please wait a few minutes"):
		return internal.NewRateLimitedError(internal.PlatformInstagram, 5*time.Minute)
	case strings.Contains(body, "bad_password"), strings.Contains(body, "invalid_user"):
		return internal.NewGatewayError(internal.PlatformInstagram, internal.ErrAuthentication, "username or password was rejected")
	default:
		return nil
	}
}

// Call issues one API request with the session's cookies and fingerprint.
// Every HTTP status is returned as a result so the caller can classify it.
func (c *ProtocolClient) Call(ctx context.Context, artifact *internal.SessionArtifact, spec internal.CallSpec) (*internal.RawResult, error) {
	if artifact == nil {
		return nil, internal.NewGatewayError(internal.PlatformInstagram, internal.ErrSessionInvalidated, "no session artifact")
	}

	reqURL := instagramAPIBase + spec.Path
	if len(spec.Query) > 0 {
		reqURL += "?" + spec.Query.Encode()
	}

	var resp *http.Response
	var err error
	if spec.Method == http.MethodPost {
		resp, err = c.http.PostForm(ctx, reqURL, spec.Form, c.headers(artifact))
	} else {
		resp, err = c.http.Get(ctx, reqURL, c.headers(artifact))
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &internal.RawResult{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// headers builds the per-request header set from the session artifact.
func (c *ProtocolClient) headers(artifact *internal.SessionArtifact) map[string]string {
	h := map[string]string{
		"X-IG-App-ID":     instagramAppID,
		"X-IG-Device-ID":  artifact.DeviceID,
		"Accept-Language": "en-US",
	}
	if artifact.UserAgent != "" {
		h["User-Agent"] = artifact.UserAgent
	}
	if len(artifact.Cookies) > 0 {
		pairs := make([]string, 0, len(artifact.Cookies))
		for name, value := range artifact.Cookies {
			pairs = append(pairs, name+"="+value)
		}
		h["Cookie"] = strings.Join(pairs, "; ")
	}
	if csrf, ok := artifact.Cookies["csrftoken"]; ok {
		h["X-CSRFToken"] = csrf
	}
	return h
}

// DetectInvalidation reports whether the response means the session cookies
// are no longer accepted.
func (c *ProtocolClient) DetectInvalidation(res *internal.RawResult, err error) bool {
	if DetectsInvalidation(res, err) {
		return true
	}
	if res == nil || (res.StatusCode != http.StatusUnauthorized && res.StatusCode != http.StatusForbidden) {
		return false
	}
	body := strings.ToLower(string(res.Body))
	return strings.Contains(body, "logged out") || strings.Contains(body, "not authorized to view")
}

// Close releases transport resources. The protocol client holds no live
// connection state beyond the pooled transport.
func (c *ProtocolClient) Close() error { return nil }
