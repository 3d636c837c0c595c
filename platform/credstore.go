package platform

import (
	"fmt"

	"socialgate/internal"
)

// CredentialStore hands out the read-only per-platform credentials assembled
// from configuration at process start.
type CredentialStore struct {
	creds map[internal.Platform]internal.Credential
}

// NewCredentialStore builds the store from configuration. Missing credentials
// are not an error here; they surface as ConfigurationError on first Load so
// one unconfigured platform does not prevent the other from serving.
func NewCredentialStore(cfg *internal.Config) *CredentialStore {
	creds := make(map[internal.Platform]internal.Credential, len(internal.Platforms))
	for _, p := range internal.Platforms {
		creds[p] = cfg.Credential(p)
	}
	return &CredentialStore{creds: creds}
}

// Load returns the credential for a platform, failing with a
// ConfigurationError when no usable login material was supplied.
func (s *CredentialStore) Load(platform internal.Platform) (internal.Credential, error) {
	cred, ok := s.creds[platform]
	if !ok {
		return internal.Credential{}, internal.NewConfigurationError(platform, fmt.Sprintf("unknown platform %q", platform))
	}
	if !cred.Configured() {
		return internal.Credential{}, internal.NewConfigurationError(platform, missingCredentialMessage(platform))
	}
	return cred, nil
}

// Configured reports whether login material exists for a platform, for
// health reporting.
func (s *CredentialStore) Configured(platform internal.Platform) bool {
	return s.creds[platform].Configured()
}

func missingCredentialMessage(platform internal.Platform) string {
	switch platform {
	case internal.PlatformTikTok:
		return "MS_TOKEN not configured"
	case internal.PlatformInstagram:
		return "Instagram credentials not configured; set INSTAGRAM_SESSION_ID or INSTAGRAM_USERNAME and INSTAGRAM_PASSWORD"
	default:
		return "credentials not configured"
	}
}
