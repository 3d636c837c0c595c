package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgate/internal"
)

func newTestServer(t *testing.T, tiktok, instagram *routedClient) *httptest.Server {
	t.Helper()
	srv := NewServer(ServerConfig{Host: "127.0.0.1", Port: 0, APIKey: "secret"}, newTestGateway(tiktok, instagram))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path, apiKey string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestHealthNeedsNoAPIKey(t *testing.T) {
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, &routedClient{platform: internal.PlatformInstagram})

	resp, body := get(t, ts, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	sessions, ok := body["sessions"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, sessions, "tiktok")
	assert.Contains(t, sessions, "instagram")
}

func TestHealthReportsConfiguredCredentials(t *testing.T) {
	srv := NewServer(ServerConfig{
		Host:        "127.0.0.1",
		Port:        0,
		Credentials: map[string]bool{"tiktok": true, "instagram": false},
	}, newTestGateway(&routedClient{platform: internal.PlatformTikTok}, &routedClient{platform: internal.PlatformInstagram}))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, body := get(t, ts, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	creds, ok := body["credentials_configured"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, creds["tiktok"])
	assert.Equal(t, false, creds["instagram"])
}

func TestAPIKeyEnforced(t *testing.T) {
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, &routedClient{platform: internal.PlatformInstagram})

	resp, _ := get(t, ts, "/instagram/user/alice", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = get(t, ts, "/instagram/user/alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInstagramUserEndpoint(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/alice/usernameinfo/", res: &internal.RawResult{StatusCode: 200, Body: []byte(instagramUserJSON)}},
	}}
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, ig)

	resp, body := get(t, ts, "/instagram/user/alice", "secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "123456", body["id"])
}

func TestNotFoundMapsTo404(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/ghost/usernameinfo/", res: &internal.RawResult{StatusCode: 404, Body: []byte(`{"message":"user_not_found"}`)}},
	}}
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, ig)

	resp, body := get(t, ts, "/instagram/user/ghost", "secret")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", body["kind"])
}

func TestRateLimitMapsTo429WithRetryAfter(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/alice/usernameinfo/", res: &internal.RawResult{StatusCode: 429, Body: []byte(`{"message":"please wait a few minutes"}`)}},
	}}
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, ig)

	resp, body := get(t, ts, "/instagram/user/alice", "secret")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "300", resp.Header.Get("Retry-After"))
	assert.Equal(t, "RateLimited", body["kind"])
}

func TestValidationMapsTo400(t *testing.T) {
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, &routedClient{platform: internal.PlatformInstagram})

	resp, body := get(t, ts, "/tiktok/video/not-a-number", "secret")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "video_id")
}

func TestChallengeMapsTo503(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/alice/usernameinfo/", res: &internal.RawResult{StatusCode: 400, Body: []byte(`{"message":"challenge_required"}`)}},
	}}
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, ig)

	resp, body := get(t, ts, "/instagram/user/alice", "secret")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "ChallengeRequired", body["kind"])
	assert.NotEmpty(t, body["suggestion"])
}

func TestPlatformErrorMapsTo502(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/alice/usernameinfo/", res: &internal.RawResult{StatusCode: 503, Body: []byte(`{}`)}},
	}}
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, ig)

	resp, body := get(t, ts, "/instagram/user/alice", "secret")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "PlatformUnavailable", body["kind"])
}

func TestPostURLEndpoint(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/media/1/info/", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{
			"items": [{"pk": 1, "id": "1_2", "code": "B", "media_type": 1, "user": {"username": "bob"}}]
		}`)}},
	}}
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, ig)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/instagram/post/url",
		strings.NewReader(`{"url": "https://www.instagram.com/p/B/"}`))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "photo", body["media_type"])

	// Missing body is a validation failure, not a crash.
	req, err = http.NewRequest(http.MethodPost, ts.URL+"/instagram/post/url", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestInitSessionEndpoint(t *testing.T) {
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, &routedClient{platform: internal.PlatformInstagram})

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/instagram/init", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "instagram", body["platform"])
	assert.Equal(t, "ACTIVE", body["state"])

	req, err = http.NewRequest(http.MethodPost, ts.URL+"/myspace/init", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &routedClient{platform: internal.PlatformTikTok}, &routedClient{platform: internal.PlatformInstagram})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/instagram/user/alice", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
