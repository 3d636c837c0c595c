package internal

import "context"

// PlatformClient is the capability set a SessionManager drives. Two concrete
// variants exist: the browser-backed TikTok client and the protocol-backed
// Instagram client.
type PlatformClient interface {
	// Authenticate performs a fresh login (or adopts prior, still-valid
	// state) and returns the resulting session artifact.
	Authenticate(ctx context.Context, cred Credential, prior *SessionArtifact) (*SessionArtifact, error)

	// Call executes one platform request using the given artifact.
	Call(ctx context.Context, artifact *SessionArtifact, spec CallSpec) (*RawResult, error)

	// DetectInvalidation reports whether a call outcome means the session
	// was invalidated remotely, as opposed to a not-found or empty result.
	DetectInvalidation(res *RawResult, err error) bool
}

// Pacer enforces the per-platform minimum inter-request delay.
type Pacer interface {
	Acquire(ctx context.Context, platform Platform) error
}

// ArtifactStore persists session artifacts across process restarts.
type ArtifactStore interface {
	Save(artifact *SessionArtifact) error
	Load(platform Platform) (*SessionArtifact, error)
	Clear(platform Platform) error
}

// CredentialSource supplies read-only platform credentials.
type CredentialSource interface {
	Load(platform Platform) (Credential, error)
}
