package service

import (
	"time"

	"github.com/tidwall/gjson"
)

// The response shapes are the stable contract of the gateway. Field names
// never follow the platforms' own key churn; the parse functions absorb the
// alternate spellings each platform emits across its web and mobile payloads.

type TikTokVideoStats struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

type TikTokAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

type TikTokAuthorStats struct {
	Followers  int64 `json:"followers"`
	Following  int64 `json:"following"`
	Likes      int64 `json:"likes"`
	VideoCount int64 `json:"video_count"`
}

type TikTokVideo struct {
	ID            string           `json:"id"`
	Description   string           `json:"description"`
	CreateTime    int64            `json:"create_time"`
	CreateTimeISO string           `json:"create_time_iso"`
	Stats         TikTokVideoStats `json:"stats"`
	Author        TikTokAuthor     `json:"author"`
}

type TikTokUser struct {
	ID       string            `json:"id"`
	Username string            `json:"username"`
	Nickname string            `json:"nickname"`
	Bio      string            `json:"bio"`
	Avatar   string            `json:"avatar,omitempty"`
	Stats    TikTokAuthorStats `json:"stats"`
}

type TikTokComment struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	CreateTime    int64        `json:"create_time,omitempty"`
	CreateTimeISO string       `json:"create_time_iso,omitempty"`
	Likes         int64        `json:"likes"`
	ReplyCount    int64        `json:"reply_count"`
	Author        TikTokAuthor `json:"author"`
}

type TikTokCommentsPage struct {
	VideoID  string          `json:"video_id"`
	Count    int             `json:"count"`
	Comments []TikTokComment `json:"comments"`
}

type TikTokVideosPage struct {
	Username string        `json:"username"`
	Count    int           `json:"count"`
	Videos   []TikTokVideo `json:"videos"`
}

type InstagramUserStats struct {
	Followers  int64 `json:"followers"`
	Following  int64 `json:"following"`
	PostsCount int64 `json:"posts_count"`
}

type InstagramUser struct {
	ID          string             `json:"id"`
	Username    string             `json:"username"`
	FullName    string             `json:"full_name"`
	Bio         string             `json:"bio"`
	Avatar      string             `json:"avatar,omitempty"`
	IsPrivate   bool               `json:"is_private"`
	IsVerified  bool               `json:"is_verified"`
	ExternalURL string             `json:"external_url,omitempty"`
	Stats       InstagramUserStats `json:"stats"`
}

type InstagramMediaStats struct {
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
	Views    *int64 `json:"views,omitempty"`
}

type InstagramMedia struct {
	ID             string              `json:"id"`
	PK             string              `json:"pk"`
	Code           string              `json:"code"`
	MediaType      string              `json:"media_type"`
	Caption        string              `json:"caption"`
	CreateTime     int64               `json:"create_time,omitempty"`
	CreateTimeISO  string              `json:"create_time_iso,omitempty"`
	ThumbnailURL   string              `json:"thumbnail_url,omitempty"`
	VideoURL       string              `json:"video_url,omitempty"`
	Stats          InstagramMediaStats `json:"stats"`
	AuthorUsername string              `json:"author_username"`
}

// InstagramCommentAuthor keeps the comment author shape distinct from the
// follower shape because the platform omits different fields in each payload.
type InstagramCommentAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar,omitempty"`
}

type InstagramComment struct {
	ID            string                 `json:"id"`
	Text          string                 `json:"text"`
	CreateTime    int64                  `json:"create_time,omitempty"`
	CreateTimeISO string                 `json:"create_time_iso,omitempty"`
	Likes         int64                  `json:"likes"`
	Author        InstagramCommentAuthor `json:"author"`
}

type InstagramCommentsPage struct {
	MediaID    string             `json:"media_id"`
	Count      int                `json:"count"`
	Comments   []InstagramComment `json:"comments"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

type InstagramFollower struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Avatar     string `json:"avatar,omitempty"`
	IsPrivate  bool   `json:"is_private"`
	IsVerified bool   `json:"is_verified"`
}

type InstagramFollowersPage struct {
	Username string              `json:"username"`
	Count    int                 `json:"count"`
	Users    []InstagramFollower `json:"users"`
}

type InstagramStory struct {
	ID           string `json:"id"`
	PK           string `json:"pk"`
	MediaType    string `json:"media_type"`
	TakenAt      int64  `json:"taken_at,omitempty"`
	TakenAtISO   string `json:"taken_at_iso,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
}

type InstagramStoriesPage struct {
	Username string           `json:"username"`
	Count    int              `json:"count"`
	Stories  []InstagramStory `json:"stories"`
}

type InstagramMediaPage struct {
	Count int              `json:"count"`
	Items []InstagramMedia `json:"items"`
}

// firstInt returns the first present path, in declaration order. The
// platforms rename counter keys between payload generations.
func firstInt(doc gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() {
			return v.Int()
		}
	}
	return 0
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func isoFromUnix(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// parseTikTokVideo shapes one item of the web app's video detail payload.
func parseTikTokVideo(doc gjson.Result) TikTokVideo {
	createTime := doc.Get("createTime").Int()
	author := doc.Get("author")
	return TikTokVideo{
		ID:            doc.Get("id").String(),
		Description:   doc.Get("desc").String(),
		CreateTime:    createTime,
		CreateTimeISO: isoFromUnix(createTime),
		Stats: TikTokVideoStats{
			Views:    doc.Get("stats.playCount").Int(),
			Likes:    doc.Get("stats.diggCount").Int(),
			Comments: doc.Get("stats.commentCount").Int(),
			Shares:   doc.Get("stats.shareCount").Int(),
		},
		Author: TikTokAuthor{
			ID:       author.Get("id").String(),
			Username: firstString(author, "uniqueId", "unique_id"),
			Nickname: author.Get("nickname").String(),
			Avatar:   firstString(author, "avatarThumb", "avatar_thumb"),
		},
	}
}

// parseTikTokUser shapes the user detail payload. The web app nests the user
// under userInfo on profile pages but emits it flat in search results.
func parseTikTokUser(doc gjson.Result) TikTokUser {
	user := doc
	stats := doc.Get("stats")
	if info := doc.Get("userInfo"); info.Exists() {
		user = info.Get("user")
		stats = info.Get("stats")
	} else if u := doc.Get("user"); u.Exists() {
		user = u
	}
	return TikTokUser{
		ID:       user.Get("id").String(),
		Username: firstString(user, "uniqueId", "unique_id"),
		Nickname: user.Get("nickname").String(),
		Bio:      user.Get("signature").String(),
		Avatar:   firstString(user, "avatarThumb", "avatar_thumb"),
		Stats: TikTokAuthorStats{
			Followers:  firstInt(stats, "followerCount", "follower_count"),
			Following:  firstInt(stats, "followingCount", "following_count"),
			Likes:      firstInt(stats, "heartCount", "heart_count", "heart"),
			VideoCount: firstInt(stats, "videoCount", "video_count"),
		},
	}
}

// parseTikTokComment shapes one comment item. Comment payloads use the
// mobile snake_case key set.
func parseTikTokComment(doc gjson.Result) TikTokComment {
	author := doc.Get("user")
	if !author.Exists() {
		author = doc.Get("author")
	}
	createTime := firstInt(doc, "createTime", "create_time")
	avatar := firstString(author, "avatarThumb", "avatar_thumb.url_list.0", "avatar")
	return TikTokComment{
		ID:            firstString(doc, "cid", "id"),
		Text:          firstString(doc, "text", "comment"),
		CreateTime:    createTime,
		CreateTimeISO: isoFromUnix(createTime),
		Likes:         firstInt(doc, "diggCount", "digg_count", "likes"),
		ReplyCount:    firstInt(doc, "replyCommentTotal", "reply_comment_total", "reply_count"),
		Author: TikTokAuthor{
			ID:       firstString(author, "uid", "id"),
			Username: firstString(author, "uniqueId", "unique_id"),
			Nickname: author.Get("nickname").String(),
			Avatar:   avatar,
		},
	}
}

// mediaTypeName maps the platform's numeric media type plus product type to
// the stable names the gateway exposes.
func mediaTypeName(mediaType int64, productType string) string {
	switch productType {
	case "clips":
		return "reel"
	case "igtv":
		return "igtv"
	}
	switch mediaType {
	case 1:
		return "photo"
	case 2:
		return "video"
	case 8:
		return "album"
	default:
		return "unknown"
	}
}

func parseInstagramUser(doc gjson.Result) InstagramUser {
	return InstagramUser{
		ID:          doc.Get("pk").String(),
		Username:    doc.Get("username").String(),
		FullName:    doc.Get("full_name").String(),
		Bio:         doc.Get("biography").String(),
		Avatar:      firstString(doc, "profile_pic_url_hd", "profile_pic_url"),
		IsPrivate:   doc.Get("is_private").Bool(),
		IsVerified:  doc.Get("is_verified").Bool(),
		ExternalURL: doc.Get("external_url").String(),
		Stats: InstagramUserStats{
			Followers:  firstInt(doc, "follower_count", "edge_followed_by.count"),
			Following:  firstInt(doc, "following_count", "edge_follow.count"),
			PostsCount: firstInt(doc, "media_count", "edge_owner_to_timeline_media.count"),
		},
	}
}

func parseInstagramMedia(doc gjson.Result) InstagramMedia {
	takenAt := firstInt(doc, "taken_at", "taken_at_timestamp")
	thumbnail := firstString(doc, "thumbnail_url", "image_versions2.candidates.0.url", "display_url")
	videoURL := firstString(doc, "video_url", "video_versions.0.url")

	m := InstagramMedia{
		ID:            doc.Get("id").String(),
		PK:            firstString(doc, "pk", "id"),
		Code:          firstString(doc, "code", "shortcode"),
		MediaType:     mediaTypeName(doc.Get("media_type").Int(), doc.Get("product_type").String()),
		Caption:       firstString(doc, "caption.text", "caption_text"),
		CreateTime:    takenAt,
		CreateTimeISO: isoFromUnix(takenAt),
		ThumbnailURL:  thumbnail,
		VideoURL:      videoURL,
		Stats: InstagramMediaStats{
			Likes:    firstInt(doc, "like_count", "edge_media_preview_like.count"),
			Comments: firstInt(doc, "comment_count", "edge_media_to_comment.count"),
		},
		AuthorUsername: doc.Get("user.username").String(),
	}

	// Reels report plays under a different counter than regular videos.
	for _, p := range []string{"play_count", "ig_play_count", "video_play_count", "view_count", "video_view_count", "fb_play_count", "clips_metadata.play_count"} {
		if v := doc.Get(p); v.Exists() && v.Int() > 0 {
			views := v.Int()
			m.Stats.Views = &views
			break
		}
	}
	return m
}

func parseInstagramComment(doc gjson.Result) InstagramComment {
	createdAt := firstInt(doc, "created_at", "created_at_utc")
	user := doc.Get("user")
	return InstagramComment{
		ID:            firstString(doc, "pk", "id"),
		Text:          doc.Get("text").String(),
		CreateTime:    createdAt,
		CreateTimeISO: isoFromUnix(createdAt),
		Likes:         firstInt(doc, "comment_like_count", "like_count"),
		Author: InstagramCommentAuthor{
			ID:       firstString(user, "pk", "id"),
			Username: user.Get("username").String(),
			FullName: user.Get("full_name").String(),
			Avatar:   user.Get("profile_pic_url").String(),
		},
	}
}

func parseInstagramFollower(doc gjson.Result) InstagramFollower {
	return InstagramFollower{
		ID:         doc.Get("pk").String(),
		Username:   doc.Get("username").String(),
		FullName:   doc.Get("full_name").String(),
		Avatar:     doc.Get("profile_pic_url").String(),
		IsPrivate:  doc.Get("is_private").Bool(),
		IsVerified: doc.Get("is_verified").Bool(),
	}
}

func parseInstagramStory(doc gjson.Result) InstagramStory {
	takenAt := doc.Get("taken_at").Int()
	return InstagramStory{
		ID:           doc.Get("id").String(),
		PK:           doc.Get("pk").String(),
		MediaType:    mediaTypeName(doc.Get("media_type").Int(), ""),
		TakenAt:      takenAt,
		TakenAtISO:   isoFromUnix(takenAt),
		ThumbnailURL: firstString(doc, "image_versions2.candidates.0.url"),
		VideoURL:     firstString(doc, "video_versions.0.url"),
	}
}
