package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgate/internal"
	"socialgate/platform"
)

// routedClient answers platform calls from a canned response table keyed by
// a path or URL fragment, in table order.
type routedClient struct {
	platform internal.Platform
	routes   []route
	calls    []internal.CallSpec
}

type route struct {
	match string
	res   *internal.RawResult
	err   error
}

func (c *routedClient) Authenticate(ctx context.Context, cred internal.Credential, prior *internal.SessionArtifact) (*internal.SessionArtifact, error) {
	return &internal.SessionArtifact{
		Platform:  c.platform,
		Cookies:   map[string]string{"sessionid": "test"},
		CreatedAt: time.Now(),
	}, nil
}

func (c *routedClient) Call(ctx context.Context, artifact *internal.SessionArtifact, spec internal.CallSpec) (*internal.RawResult, error) {
	c.calls = append(c.calls, spec)
	target := spec.Path + " " + spec.TargetURL + " " + spec.Name
	for _, r := range c.routes {
		if strings.Contains(target, r.match) {
			return r.res, r.err
		}
	}
	return &internal.RawResult{StatusCode: 404, Body: []byte(`{"message":"user_not_found"}`)}, nil
}

func (c *routedClient) DetectInvalidation(res *internal.RawResult, err error) bool {
	if res == nil {
		return false
	}
	return strings.Contains(string(res.Body), "login_required")
}

type unpacedPacer struct{}

func (unpacedPacer) Acquire(ctx context.Context, platform internal.Platform) error { return ctx.Err() }

type nilStore struct{}

func (nilStore) Save(*internal.SessionArtifact) error { return nil }
func (nilStore) Load(internal.Platform) (*internal.SessionArtifact, error) {
	return nil, nil
}
func (nilStore) Clear(internal.Platform) error { return nil }

type anyCreds struct{}

func (anyCreds) Load(p internal.Platform) (internal.Credential, error) {
	return internal.Credential{Platform: p, Token: "t", Username: "u", Secret: "s"}, nil
}

func newTestGateway(tiktok, instagram *routedClient) *Gateway {
	tkMgr := platform.NewSessionManager(internal.PlatformTikTok, tiktok, anyCreds{}, unpacedPacer{}, nilStore{})
	igMgr := platform.NewSessionManager(internal.PlatformInstagram, instagram, anyCreds{}, unpacedPacer{}, nilStore{})
	return NewGateway(tkMgr, igMgr)
}

const tiktokVideoJSON = `{
	"id": "7301234567890123456",
	"desc": "sunset timelapse",
	"createTime": 1700000000,
	"stats": {"playCount": 1500, "diggCount": 120, "commentCount": 30, "shareCount": 12},
	"author": {"id": "42", "uniqueId": "sunsetfan", "nickname": "Sunset Fan", "avatarThumb": "https://cdn.example/a.jpg"}
}`

func TestTikTokVideoByID(t *testing.T) {
	tk := &routedClient{platform: internal.PlatformTikTok, routes: []route{
		{match: "/video/7301234567890123456", res: &internal.RawResult{StatusCode: 200, Body: []byte(tiktokVideoJSON)}},
	}}
	g := newTestGateway(tk, &routedClient{platform: internal.PlatformInstagram})

	video, err := g.TikTokVideoByID(context.Background(), "7301234567890123456")
	require.NoError(t, err)
	assert.Equal(t, "7301234567890123456", video.ID)
	assert.Equal(t, "sunset timelapse", video.Description)
	assert.Equal(t, int64(1500), video.Stats.Views)
	assert.Equal(t, "sunsetfan", video.Author.Username)
	assert.Equal(t, "2023-11-14T22:13:20Z", video.CreateTimeISO)
}

func TestTikTokVideoByIDValidation(t *testing.T) {
	tk := &routedClient{platform: internal.PlatformTikTok}
	g := newTestGateway(tk, &routedClient{platform: internal.PlatformInstagram})

	_, err := g.TikTokVideoByID(context.Background(), "not-a-number")
	var verr *internal.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, tk.calls, "invalid input must not reach the platform")
}

func TestTikTokVideoByURL(t *testing.T) {
	tk := &routedClient{platform: internal.PlatformTikTok, routes: []route{
		{match: "/video/7301234567890123456", res: &internal.RawResult{StatusCode: 200, Body: []byte(tiktokVideoJSON)}},
	}}
	g := newTestGateway(tk, &routedClient{platform: internal.PlatformInstagram})

	video, err := g.TikTokVideoByURL(context.Background(), "https://www.tiktok.com/@sunsetfan/video/7301234567890123456?is_copy_url=1")
	require.NoError(t, err)
	assert.Equal(t, "7301234567890123456", video.ID)

	_, err = g.TikTokVideoByURL(context.Background(), "https://example.com/nothing")
	var verr *internal.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTikTokUserNotFound(t *testing.T) {
	tk := &routedClient{platform: internal.PlatformTikTok, routes: []route{
		{match: "tiktok.com/@ghost", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{"statusCode": 10221}`)}},
	}}
	g := newTestGateway(tk, &routedClient{platform: internal.PlatformInstagram})

	_, err := g.TikTokUser(context.Background(), "@ghost")
	require.Error(t, err)
	assert.Equal(t, internal.ErrNotFound, internal.KindOf(err))
}

func TestTikTokUserVideosTwoStep(t *testing.T) {
	tk := &routedClient{platform: internal.PlatformTikTok, routes: []route{
		{match: "api/post/item_list", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{"itemList": [` + tiktokVideoJSON + `]}`)}},
		{match: "tiktok.com/@sunsetfan", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{"userInfo": {"user": {"id": "42", "uniqueId": "sunsetfan", "secUid": "MS4wLjABAAAA"}}}`)}},
	}}
	g := newTestGateway(tk, &routedClient{platform: internal.PlatformInstagram})

	page, err := g.TikTokUserVideos(context.Background(), "sunsetfan", 10)
	require.NoError(t, err)
	require.Len(t, tk.calls, 2)
	assert.Equal(t, "MS4wLjABAAAA", tk.calls[1].Query.Get("secUid"))
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, "sunsetfan", page.Videos[0].Author.Username)
}

const instagramUserJSON = `{
	"user": {
		"pk": 123456,
		"username": "alice",
		"full_name": "Alice A",
		"biography": "hello",
		"profile_pic_url": "https://cdn.example/p.jpg",
		"is_private": false,
		"is_verified": true,
		"follower_count": 10,
		"following_count": 20,
		"media_count": 5
	}
}`

func TestInstagramUser(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/alice/usernameinfo/", res: &internal.RawResult{StatusCode: 200, Body: []byte(instagramUserJSON)}},
	}}
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, ig)

	user, err := g.InstagramUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "123456", user.ID)
	assert.Equal(t, "Alice A", user.FullName)
	assert.True(t, user.IsVerified)
	assert.Equal(t, int64(10), user.Stats.Followers)
}

func TestInstagramUserPostsResolvesPKFirst(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/alice/usernameinfo/", res: &internal.RawResult{StatusCode: 200, Body: []byte(instagramUserJSON)}},
		{match: "/feed/user/123456/", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{
			"items": [{
				"pk": 999, "id": "999_123456", "code": "Cabc123", "media_type": 2, "product_type": "clips",
				"taken_at": 1700000000, "like_count": 7, "comment_count": 2, "play_count": 4200,
				"caption": {"text": "clip"}, "user": {"username": "alice"},
				"image_versions2": {"candidates": [{"url": "https://cdn.example/t.jpg"}]},
				"video_versions": [{"url": "https://cdn.example/v.mp4"}]
			}]
		}`)}},
	}}
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, ig)

	page, err := g.InstagramUserPosts(context.Background(), "alice", 5)
	require.NoError(t, err)
	require.Len(t, ig.calls, 2)
	require.Equal(t, 1, page.Count)

	media := page.Items[0]
	assert.Equal(t, "reel", media.MediaType)
	assert.Equal(t, "clip", media.Caption)
	assert.Equal(t, "alice", media.AuthorUsername)
	require.NotNil(t, media.Stats.Views)
	assert.Equal(t, int64(4200), *media.Stats.Views)
	assert.Equal(t, "https://cdn.example/t.jpg", media.ThumbnailURL)
}

func TestInstagramPostByShortcode(t *testing.T) {
	// Shortcode "B" decodes to pk 1.
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/media/1/info/", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{
			"items": [{"pk": 1, "id": "1_2", "code": "B", "media_type": 1, "like_count": 3, "comment_count": 1, "user": {"username": "bob"}}]
		}`)}},
	}}
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, ig)

	media, err := g.InstagramPost(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, "photo", media.MediaType)
	assert.Equal(t, "bob", media.AuthorUsername)
}

func TestInstagramPostCommentsCursor(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/media/77/comments/", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{
			"comments": [
				{"pk": 1, "text": "first", "created_at": 1700000000, "comment_like_count": 2, "user": {"pk": 9, "username": "bob", "full_name": "Bob"}},
				{"pk": 2, "text": "second", "created_at": 1700000100, "user": {"pk": 10, "username": "carol"}}
			],
			"next_max_id": "cursor-2",
			"has_more_comments": true
		}`)}},
	}}
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, ig)

	page, err := g.InstagramPostComments(context.Background(), "77", 20, "cursor-1")
	require.NoError(t, err)
	require.Len(t, ig.calls, 1)
	assert.Equal(t, "cursor-1", ig.calls[0].Query.Get("max_id"))
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, "first", page.Comments[0].Text)
	assert.Equal(t, "bob", page.Comments[0].Author.Username)
	assert.Equal(t, "cursor-2", page.NextCursor)
	assert.True(t, page.HasMore)
}

func TestInstagramFollowersEmptyVsError(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/alice/usernameinfo/", res: &internal.RawResult{StatusCode: 200, Body: []byte(instagramUserJSON)}},
		{match: "/friendships/123456/followers/", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{"users": []}`)}},
	}}
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, ig)

	// An empty follower list is a valid result, not an error.
	page, err := g.InstagramFollowers(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Count)
	assert.NotNil(t, page.Users)
}

func TestInstagramHashtagNormalization(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/feed/tag/sunset/", res: &internal.RawResult{StatusCode: 200, Body: []byte(`{"items": []}`)}},
	}}
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, ig)

	page, err := g.InstagramHashtagPosts(context.Background(), "#sunset", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Count)

	_, err = g.InstagramHashtagPosts(context.Background(), "  ", 10)
	var verr *internal.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGatewayRateLimitSurfacesRetryAfter(t *testing.T) {
	ig := &routedClient{platform: internal.PlatformInstagram, routes: []route{
		{match: "/users/alice/usernameinfo/", res: &internal.RawResult{StatusCode: 429, Body: []byte(`{"message":"please wait a few minutes before you try again"}`)}},
	}}
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, ig)

	_, err := g.InstagramUser(context.Background(), "alice")
	require.Error(t, err)
	gerr, ok := internal.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrRateLimited, gerr.Kind)
	assert.Equal(t, 5*time.Minute, gerr.RetryAfter)
}

func TestInitSessionWarmsPlatform(t *testing.T) {
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, &routedClient{platform: internal.PlatformInstagram})

	session, err := g.InitSession(context.Background(), internal.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, internal.StateActive, session.State)

	// The other platform stays untouched.
	assert.Equal(t, internal.StateUninitialized, g.Sessions()[internal.PlatformInstagram].State)

	_, err = g.InitSession(context.Background(), internal.Platform("myspace"))
	var verr *internal.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGatewaySessions(t *testing.T) {
	g := newTestGateway(&routedClient{platform: internal.PlatformTikTok}, &routedClient{platform: internal.PlatformInstagram})

	sessions := g.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, internal.StateUninitialized, sessions[internal.PlatformTikTok].State)
	assert.Equal(t, internal.StateUninitialized, sessions[internal.PlatformInstagram].State)
}
