package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Target-identifier parsing: share URLs arrive in many shapes and the
// platforms address content by numeric ids internally.

var tiktokVideoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`tiktok\.com/@[\w.-]+/video/(\d+)`),
	regexp.MustCompile(`vm\.tiktok\.com/(\w+)`),
	regexp.MustCompile(`tiktok\.com/t/(\w+)`),
	regexp.MustCompile(`/video/(\d+)`),
}

var instagramShortcodePattern = regexp.MustCompile(`instagram\.com/(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)

// ExtractTikTokVideoID pulls the video id out of any supported TikTok URL
// shape. Bare numeric ids pass through unchanged.
func ExtractTikTokVideoID(rawURL string) (string, error) {
	for _, pattern := range tiktokVideoPatterns {
		if match := pattern.FindStringSubmatch(rawURL); match != nil {
			return match[1], nil
		}
	}

	if isDigits(rawURL) {
		return rawURL, nil
	}

	return "", fmt.Errorf("could not extract video ID from URL: %s", rawURL)
}

// ExtractInstagramShortcode pulls the shortcode out of a post/reel/tv URL.
func ExtractInstagramShortcode(rawURL string) (string, error) {
	if match := instagramShortcodePattern.FindStringSubmatch(rawURL); match != nil {
		return match[1], nil
	}
	return "", fmt.Errorf("could not extract shortcode from URL: %s", rawURL)
}

// Instagram encodes media pks as base-64 strings over this alphabet.
const shortcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// MediaPKFromShortcode decodes an Instagram shortcode into its numeric media pk.
func MediaPKFromShortcode(code string) (int64, error) {
	if code == "" {
		return 0, fmt.Errorf("empty shortcode")
	}

	var pk int64
	for _, ch := range code {
		idx := strings.IndexRune(shortcodeAlphabet, ch)
		if idx < 0 {
			return 0, fmt.Errorf("invalid character %q in shortcode %s", ch, code)
		}
		pk = pk*64 + int64(idx)
	}
	return pk, nil
}

// ResolveInstagramMediaPK accepts either a numeric pk or a shortcode and
// returns the numeric pk as a string.
func ResolveInstagramMediaPK(id string) (string, error) {
	if isDigits(id) {
		return id, nil
	}
	pk, err := MediaPKFromShortcode(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", pk), nil
}

// NormalizeUsername strips the @-prefix users paste in with handles.
func NormalizeUsername(username string) string {
	return strings.TrimLeft(strings.TrimSpace(username), "@")
}

// NormalizeHashtag strips the #-prefix from hashtag names.
func NormalizeHashtag(name string) string {
	return strings.TrimLeft(strings.TrimSpace(name), "#")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
