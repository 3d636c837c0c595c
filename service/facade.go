package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"socialgate/internal"
	"socialgate/platform"
	"socialgate/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Gateway is the operation facade. Every public method is one user-facing
// operation that routes through the owning platform's session manager, so
// pacing, session acquisition, and the retry-on-invalidation discipline
// apply uniformly.
type Gateway struct {
	tiktok    *platform.SessionManager
	instagram *platform.SessionManager
}

// NewGateway wires the facade onto the two session managers.
func NewGateway(tiktok, instagram *platform.SessionManager) *Gateway {
	return &Gateway{tiktok: tiktok, instagram: instagram}
}

// InitSession eagerly establishes the named platform's session so that the
// first content request does not pay the authentication cost. The snapshot
// is returned even on failure so callers can see the resulting state.
func (g *Gateway) InitSession(ctx context.Context, p internal.Platform) (internal.Session, error) {
	var manager *platform.SessionManager
	switch p {
	case internal.PlatformTikTok:
		manager = g.tiktok
	case internal.PlatformInstagram:
		manager = g.instagram
	default:
		return internal.Session{}, internal.NewValidationError("platform", "must be tiktok or instagram")
	}
	err := manager.EnsureActive(ctx)
	return manager.Snapshot(), err
}

// Sessions exposes current session snapshots for health reporting.
func (g *Gateway) Sessions() map[internal.Platform]internal.Session {
	return map[internal.Platform]internal.Session{
		internal.PlatformTikTok:    g.tiktok.Snapshot(),
		internal.PlatformInstagram: g.instagram.Snapshot(),
	}
}

func clampCount(count int) int {
	if count <= 0 {
		return defaultPageSize
	}
	if count > maxPageSize {
		return maxPageSize
	}
	return count
}

// ----- TikTok operations -----

// TikTokVideoByID fetches one video's metadata from its detail page state.
func (g *Gateway) TikTokVideoByID(ctx context.Context, videoID string) (*TikTokVideo, error) {
	if !isNumericID(videoID) {
		return nil, internal.NewValidationError("video_id", "must be a numeric video ID")
	}
	res, err := g.tiktok.Execute(ctx, internal.CallSpec{
		Name:       "tiktok_video",
		TargetURL:  fmt.Sprintf("https://www.tiktok.com/@_/video/%s", videoID),
		ExtractKey: `__DEFAULT_SCOPE__.webapp\.video-detail.itemInfo.itemStruct`,
	})
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(res.Body)
	if doc.Get("id").String() == "" {
		return nil, internal.NewNotFoundError(internal.PlatformTikTok, "video "+videoID)
	}
	video := parseTikTokVideo(doc)
	return &video, nil
}

// TikTokVideoByURL resolves a share URL to its video ID first.
func (g *Gateway) TikTokVideoByURL(ctx context.Context, rawURL string) (*TikTokVideo, error) {
	videoID, err := utils.ExtractTikTokVideoID(rawURL)
	if err != nil {
		return nil, internal.NewValidationError("url", err.Error())
	}
	return g.TikTokVideoByID(ctx, videoID)
}

// TikTokUser fetches a user profile from the profile page state.
func (g *Gateway) TikTokUser(ctx context.Context, username string) (*TikTokUser, error) {
	username = utils.NormalizeUsername(username)
	if username == "" {
		return nil, internal.NewValidationError("username", "must not be empty")
	}
	res, err := g.tiktok.Execute(ctx, internal.CallSpec{
		Name:       "tiktok_user",
		TargetURL:  fmt.Sprintf("https://www.tiktok.com/@%s", username),
		ExtractKey: `__DEFAULT_SCOPE__.webapp\.user-detail`,
	})
	if err != nil {
		return nil, err
	}
	doc := gjson.ParseBytes(res.Body)
	if doc.Get("statusCode").Int() == 10221 || doc.Get("userInfo.user.id").String() == "" {
		return nil, internal.NewNotFoundError(internal.PlatformTikTok, "user @"+username)
	}
	user := parseTikTokUser(doc)
	return &user, nil
}

// TikTokUserVideos lists a user's recent videos. The item list is not
// embedded in the profile page, so it is fetched through the session's own
// list endpoint after resolving the account's secUid from the profile.
func (g *Gateway) TikTokUserVideos(ctx context.Context, username string, count int) (*TikTokVideosPage, error) {
	username = utils.NormalizeUsername(username)
	if username == "" {
		return nil, internal.NewValidationError("username", "must not be empty")
	}
	count = clampCount(count)

	profile, err := g.tiktok.Execute(ctx, internal.CallSpec{
		Name:       "tiktok_user_secuid",
		TargetURL:  fmt.Sprintf("https://www.tiktok.com/@%s", username),
		ExtractKey: `__DEFAULT_SCOPE__.webapp\.user-detail`,
	})
	if err != nil {
		return nil, err
	}
	secUID := gjson.GetBytes(profile.Body, "userInfo.user.secUid").String()
	if secUID == "" {
		return nil, internal.NewNotFoundError(internal.PlatformTikTok, "user @"+username)
	}

	query := url.Values{}
	query.Set("secUid", secUID)
	query.Set("count", strconv.Itoa(count))
	query.Set("cursor", "0")
	res, err := g.tiktok.Execute(ctx, internal.CallSpec{
		Name:  "tiktok_user_videos",
		Path:  "https://www.tiktok.com/api/post/item_list/",
		Query: query,
	})
	if err != nil {
		return nil, err
	}

	page := &TikTokVideosPage{Username: username, Videos: []TikTokVideo{}}
	gjson.GetBytes(res.Body, "itemList").ForEach(func(_, item gjson.Result) bool {
		page.Videos = append(page.Videos, parseTikTokVideo(item))
		return len(page.Videos) < count
	})
	page.Count = len(page.Videos)
	return page, nil
}

// TikTokVideoComments lists a video's comments through the session's comment
// endpoint.
func (g *Gateway) TikTokVideoComments(ctx context.Context, videoID string, count int) (*TikTokCommentsPage, error) {
	if !isNumericID(videoID) {
		return nil, internal.NewValidationError("video_id", "must be a numeric video ID")
	}
	count = clampCount(count)

	query := url.Values{}
	query.Set("aweme_id", videoID)
	query.Set("count", strconv.Itoa(count))
	query.Set("cursor", "0")
	res, err := g.tiktok.Execute(ctx, internal.CallSpec{
		Name:      "tiktok_video_comments",
		TargetURL: fmt.Sprintf("https://www.tiktok.com/@_/video/%s", videoID),
		Path:      "https://www.tiktok.com/api/comment/list/",
		Query:     query,
	})
	if err != nil {
		return nil, err
	}

	page := &TikTokCommentsPage{VideoID: videoID, Comments: []TikTokComment{}}
	gjson.GetBytes(res.Body, "comments").ForEach(func(_, item gjson.Result) bool {
		page.Comments = append(page.Comments, parseTikTokComment(item))
		return len(page.Comments) < count
	})
	page.Count = len(page.Comments)
	return page, nil
}

// ----- Instagram operations -----

// resolveInstagramUserPK turns a username into the numeric account ID the
// private API addresses users by.
func (g *Gateway) resolveInstagramUserPK(ctx context.Context, username string) (string, error) {
	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_usernameinfo",
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/users/%s/usernameinfo/", url.PathEscape(username)),
	})
	if err != nil {
		return "", err
	}
	pk := gjson.GetBytes(res.Body, "user.pk").String()
	if pk == "" {
		return "", internal.NewNotFoundError(internal.PlatformInstagram, "user @"+username)
	}
	return pk, nil
}

// InstagramUser fetches a user profile.
func (g *Gateway) InstagramUser(ctx context.Context, username string) (*InstagramUser, error) {
	username = utils.NormalizeUsername(username)
	if username == "" {
		return nil, internal.NewValidationError("username", "must not be empty")
	}
	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_user",
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/users/%s/usernameinfo/", url.PathEscape(username)),
	})
	if err != nil {
		return nil, err
	}
	userDoc := gjson.GetBytes(res.Body, "user")
	if !userDoc.Exists() || userDoc.Get("pk").String() == "" {
		return nil, internal.NewNotFoundError(internal.PlatformInstagram, "user @"+username)
	}
	user := parseInstagramUser(userDoc)
	return &user, nil
}

// InstagramUserPosts lists a user's recent posts.
func (g *Gateway) InstagramUserPosts(ctx context.Context, username string, count int) (*InstagramMediaPage, error) {
	username = utils.NormalizeUsername(username)
	if username == "" {
		return nil, internal.NewValidationError("username", "must not be empty")
	}
	count = clampCount(count)

	pk, err := g.resolveInstagramUserPK(ctx, username)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("count", strconv.Itoa(count))
	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_user_posts",
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/feed/user/%s/", pk),
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	page := &InstagramMediaPage{Items: []InstagramMedia{}}
	gjson.GetBytes(res.Body, "items").ForEach(func(_, item gjson.Result) bool {
		page.Items = append(page.Items, parseInstagramMedia(item))
		return len(page.Items) < count
	})
	page.Count = len(page.Items)
	return page, nil
}

// InstagramUserStories lists a user's active stories.
func (g *Gateway) InstagramUserStories(ctx context.Context, username string) (*InstagramStoriesPage, error) {
	username = utils.NormalizeUsername(username)
	if username == "" {
		return nil, internal.NewValidationError("username", "must not be empty")
	}
	pk, err := g.resolveInstagramUserPK(ctx, username)
	if err != nil {
		return nil, err
	}
	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_user_stories",
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/feed/user/%s/story/", pk),
	})
	if err != nil {
		return nil, err
	}

	page := &InstagramStoriesPage{Username: username, Stories: []InstagramStory{}}
	gjson.GetBytes(res.Body, "reel.items").ForEach(func(_, item gjson.Result) bool {
		page.Stories = append(page.Stories, parseInstagramStory(item))
		return true
	})
	page.Count = len(page.Stories)
	return page, nil
}

// InstagramFollowers lists accounts following the user.
func (g *Gateway) InstagramFollowers(ctx context.Context, username string, count int) (*InstagramFollowersPage, error) {
	return g.friendships(ctx, username, count, "followers")
}

// InstagramFollowing lists accounts the user follows.
func (g *Gateway) InstagramFollowing(ctx context.Context, username string, count int) (*InstagramFollowersPage, error) {
	return g.friendships(ctx, username, count, "following")
}

func (g *Gateway) friendships(ctx context.Context, username string, count int, direction string) (*InstagramFollowersPage, error) {
	username = utils.NormalizeUsername(username)
	if username == "" {
		return nil, internal.NewValidationError("username", "must not be empty")
	}
	count = clampCount(count)

	pk, err := g.resolveInstagramUserPK(ctx, username)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("count", strconv.Itoa(count))
	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_" + direction,
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/friendships/%s/%s/", pk, direction),
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	page := &InstagramFollowersPage{Username: username, Users: []InstagramFollower{}}
	gjson.GetBytes(res.Body, "users").ForEach(func(_, item gjson.Result) bool {
		page.Users = append(page.Users, parseInstagramFollower(item))
		return len(page.Users) < count
	})
	page.Count = len(page.Users)
	return page, nil
}

// InstagramPost fetches one post by media ID or shortcode.
func (g *Gateway) InstagramPost(ctx context.Context, mediaID string) (*InstagramMedia, error) {
	if mediaID == "" {
		return nil, internal.NewValidationError("media_id", "must not be empty")
	}
	pk, err := utils.ResolveInstagramMediaPK(mediaID)
	if err != nil {
		return nil, internal.NewValidationError("media_id", err.Error())
	}
	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_post",
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/media/%s/info/", pk),
	})
	if err != nil {
		return nil, err
	}
	item := gjson.GetBytes(res.Body, "items.0")
	if !item.Exists() {
		return nil, internal.NewNotFoundError(internal.PlatformInstagram, "post "+mediaID)
	}
	media := parseInstagramMedia(item)
	return &media, nil
}

// InstagramPostByURL resolves a post URL to its shortcode first.
func (g *Gateway) InstagramPostByURL(ctx context.Context, rawURL string) (*InstagramMedia, error) {
	code, err := utils.ExtractInstagramShortcode(rawURL)
	if err != nil {
		return nil, internal.NewValidationError("url", err.Error())
	}
	return g.InstagramPost(ctx, code)
}

// InstagramPostComments lists a post's comments with cursor pagination.
func (g *Gateway) InstagramPostComments(ctx context.Context, mediaID string, count int, cursor string) (*InstagramCommentsPage, error) {
	if mediaID == "" {
		return nil, internal.NewValidationError("media_id", "must not be empty")
	}
	pk, err := utils.ResolveInstagramMediaPK(mediaID)
	if err != nil {
		return nil, internal.NewValidationError("media_id", err.Error())
	}
	count = clampCount(count)

	query := url.Values{}
	query.Set("can_support_threading", "true")
	if cursor != "" {
		query.Set("max_id", cursor)
	}
	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_post_comments",
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/media/%s/comments/", pk),
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(res.Body)
	page := &InstagramCommentsPage{MediaID: mediaID, Comments: []InstagramComment{}}
	doc.Get("comments").ForEach(func(_, item gjson.Result) bool {
		page.Comments = append(page.Comments, parseInstagramComment(item))
		return len(page.Comments) < count
	})
	page.Count = len(page.Comments)
	page.NextCursor = doc.Get("next_max_id").String()
	page.HasMore = doc.Get("has_more_comments").Bool() || page.NextCursor != ""
	return page, nil
}

// InstagramPostLikers lists accounts that liked a post.
func (g *Gateway) InstagramPostLikers(ctx context.Context, mediaID string, count int) (*InstagramFollowersPage, error) {
	if mediaID == "" {
		return nil, internal.NewValidationError("media_id", "must not be empty")
	}
	pk, err := utils.ResolveInstagramMediaPK(mediaID)
	if err != nil {
		return nil, internal.NewValidationError("media_id", err.Error())
	}
	count = clampCount(count)

	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_post_likers",
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/media/%s/likers/", pk),
	})
	if err != nil {
		return nil, err
	}

	page := &InstagramFollowersPage{Username: mediaID, Users: []InstagramFollower{}}
	gjson.GetBytes(res.Body, "users").ForEach(func(_, item gjson.Result) bool {
		page.Users = append(page.Users, parseInstagramFollower(item))
		return len(page.Users) < count
	})
	page.Count = len(page.Users)
	return page, nil
}

// InstagramHashtagPosts lists recent posts under a hashtag.
func (g *Gateway) InstagramHashtagPosts(ctx context.Context, name string, count int) (*InstagramMediaPage, error) {
	name = utils.NormalizeHashtag(name)
	if name == "" {
		return nil, internal.NewValidationError("hashtag", "must not be empty")
	}
	count = clampCount(count)

	query := url.Values{}
	query.Set("count", strconv.Itoa(count))
	res, err := g.instagram.Execute(ctx, internal.CallSpec{
		Name:   "instagram_hashtag_posts",
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/feed/tag/%s/", url.PathEscape(name)),
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	page := &InstagramMediaPage{Items: []InstagramMedia{}}
	doc := gjson.ParseBytes(res.Body)
	items := doc.Get("items")
	if !items.Exists() {
		items = doc.Get("ranked_items")
	}
	items.ForEach(func(_, item gjson.Result) bool {
		page.Items = append(page.Items, parseInstagramMedia(item))
		return len(page.Items) < count
	})
	page.Count = len(page.Items)
	return page, nil
}

func isNumericID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
