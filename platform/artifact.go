package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"socialgate/internal"
)

// FileArtifactStore persists one session artifact per platform as a JSON
// bundle under the state directory so a restart can reuse the session without
// re-logging in.
type FileArtifactStore struct {
	dir    string
	maxAge time.Duration
}

// NewFileArtifactStore creates a store rooted at dir. Artifacts older than
// maxAge are treated as absent on Load.
func NewFileArtifactStore(dir string, maxAge time.Duration) *FileArtifactStore {
	return &FileArtifactStore{dir: dir, maxAge: maxAge}
}

func (s *FileArtifactStore) path(platform internal.Platform) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_session.json", platform))
}

// Save writes the artifact atomically. Session files carry live tokens, so
// they are created owner-readable only.
func (s *FileArtifactStore) Save(artifact *internal.SessionArtifact) error {
	if artifact == nil || artifact.Platform == "" {
		return fmt.Errorf("artifact without platform")
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session artifact: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := s.path(artifact.Platform) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session artifact: %w", err)
	}
	if err := os.Rename(tmp, s.path(artifact.Platform)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session artifact: %w", err)
	}

	internal.LogDebug("persisted %s session artifact to %s", artifact.Platform, s.path(artifact.Platform))
	return nil
}

// Load returns the persisted artifact for a platform, or (nil, nil) when none
// exists or the stored one is stale by policy.
func (s *FileArtifactStore) Load(platform internal.Platform) (*internal.SessionArtifact, error) {
	data, err := os.ReadFile(s.path(platform))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session artifact: %w", err)
	}

	var artifact internal.SessionArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		internal.LogWarn("ignoring corrupt %s session artifact: %v", platform, err)
		return nil, nil
	}

	if artifact.Platform != platform {
		internal.LogWarn("ignoring %s session artifact recorded for %s", platform, artifact.Platform)
		return nil, nil
	}

	if artifact.StaleBy(s.maxAge, time.Now()) {
		internal.LogInfo("%s session artifact is stale, a fresh login will be required", platform)
		return nil, nil
	}

	return &artifact, nil
}

// Clear removes the persisted artifact for a platform.
func (s *FileArtifactStore) Clear(platform internal.Platform) error {
	err := os.Remove(s.path(platform))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session artifact: %w", err)
	}
	return nil
}
