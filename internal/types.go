package internal

import (
	"fmt"
	"net/url"
	"time"
)

// Platform identifies one of the upstream content platforms.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Platforms lists every supported platform.
var Platforms = []Platform{PlatformTikTok, PlatformInstagram}

// ParsePlatform converts a string into a known Platform.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformTikTok:
		return PlatformTikTok, nil
	case PlatformInstagram:
		return PlatformInstagram, nil
	default:
		return "", fmt.Errorf("unknown platform: %q", s)
	}
}

// SessionState tracks the lifecycle of a platform session.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateActive
	StateExpired
	StateChallenged
	StateFailed
)

// String returns the string representation of a SessionState.
func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateActive:
		return "ACTIVE"
	case StateExpired:
		return "EXPIRED"
	case StateChallenged:
		return "CHALLENGED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Session is the single per-platform session object. It is owned exclusively
// by the platform's SessionManager; nothing else mutates it.
type Session struct {
	Platform   Platform
	State      SessionState
	Artifact   *SessionArtifact
	CreatedAt  time.Time
	LastUsedAt time.Time
	LastError  string
}

// Credential is the read-only login material for one platform account.
// TikTok uses Token (the ms_token browser cookie); Instagram uses
// Username/Secret and/or SessionID (a pre-baked sessionid cookie).
type Credential struct {
	Platform  Platform
	Username  string
	Secret    string
	Token     string
	SessionID string
}

// Configured reports whether the credential carries enough material to
// attempt a login.
func (c Credential) Configured() bool {
	switch c.Platform {
	case PlatformTikTok:
		return c.Token != ""
	case PlatformInstagram:
		return c.SessionID != "" || (c.Username != "" && c.Secret != "")
	default:
		return false
	}
}

// SessionArtifact is the opaque serialized authentication state persisted
// after a successful login and reloaded on process start. Cookies carry the
// platform tokens; the device fields keep the protocol client's fingerprint
// stable across restarts.
type SessionArtifact struct {
	Platform   Platform          `json:"platform"`
	Cookies    map[string]string `json:"cookies"`
	UserAgent  string            `json:"user_agent,omitempty"`
	DeviceID   string            `json:"device_id,omitempty"`
	PhoneID    string            `json:"phone_id,omitempty"`
	AccountID  string            `json:"account_id,omitempty"`
	StorageRaw []byte            `json:"storage_raw,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at,omitempty"`
}

// StaleBy reports whether the artifact is too old to reuse under the given
// maximum age policy.
func (a *SessionArtifact) StaleBy(maxAge time.Duration, now time.Time) bool {
	if a == nil {
		return true
	}
	if !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt) {
		return true
	}
	return maxAge > 0 && now.Sub(a.CreatedAt) > maxAge
}

// PacingWindow is the [Min, Max] random delay enforced between consecutive
// outbound calls to one platform.
type PacingWindow struct {
	Min time.Duration
	Max time.Duration
}

// CallSpec describes one platform call for a SessionManager to execute. The
// protocol-client variant uses Method/Path/Query/Form; the browser-backed
// variant uses TargetURL plus ExtractKey for the embedded page state.
type CallSpec struct {
	Name       string
	Method     string
	Path       string
	Query      url.Values
	Form       url.Values
	TargetURL  string
	ExtractKey string
}

// RawResult is the unparsed outcome of a platform call.
type RawResult struct {
	StatusCode int
	Body       []byte
	FinalURL   string
}
