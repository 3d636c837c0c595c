package platform

import (
	"context"
	"sync"
	"time"

	"socialgate/internal"
)

// SessionManager owns the single Session for one platform. It performs lazy
// authentication, session reuse across restarts, and re-authentication when
// the platform invalidates the session mid-call. All state transitions happen
// under the manager's lock; platform calls themselves run outside it.
type SessionManager struct {
	platform internal.Platform
	client   internal.PlatformClient
	creds    internal.CredentialSource
	pacer    internal.Pacer
	store    internal.ArtifactStore

	mu       sync.Mutex
	session  internal.Session
	authDone chan struct{} // non-nil while an authentication attempt is in flight
	authErr  error         // outcome of the last attempt, for its waiters
}

// NewSessionManager creates the manager for one platform. A persisted,
// non-stale artifact from a previous run is adopted as an ACTIVE session
// without re-authenticating.
func NewSessionManager(platform internal.Platform, client internal.PlatformClient, creds internal.CredentialSource, pacer internal.Pacer, store internal.ArtifactStore) *SessionManager {
	m := &SessionManager{
		platform: platform,
		client:   client,
		creds:    creds,
		pacer:    pacer,
		store:    store,
		session: internal.Session{
			Platform: platform,
			State:    internal.StateUninitialized,
		},
	}

	if store != nil {
		if artifact, err := store.Load(platform); err != nil {
			internal.LogWarn("failed to load persisted %s session: %v", platform, err)
		} else if artifact != nil {
			m.session.State = internal.StateActive
			m.session.Artifact = artifact
			m.session.CreatedAt = artifact.CreatedAt
			internal.LogInfo("reusing persisted %s session from %s", platform, artifact.CreatedAt.Format(time.RFC3339))
		}
	}

	return m
}

// Platform returns the platform this manager owns.
func (m *SessionManager) Platform() internal.Platform {
	return m.platform
}

// Snapshot returns the current session state for health reporting.
func (m *SessionManager) Snapshot() internal.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// EnsureActive guarantees the session is ACTIVE, authenticating when needed.
// At most one authentication attempt is in flight per platform; concurrent
// callers wait for its result instead of starting their own.
func (m *SessionManager) EnsureActive(ctx context.Context) error {
	for {
		m.mu.Lock()

		switch m.session.State {
		case internal.StateActive:
			m.mu.Unlock()
			return nil
		case internal.StateChallenged:
			m.mu.Unlock()
			return internal.NewChallengeRequiredError(m.platform, "session requires out-of-band verification")
		}

		if m.authDone != nil {
			// Another caller is authenticating; wait for its outcome
			// instead of starting a second attempt.
			done := m.authDone
			m.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			m.mu.Lock()
			err := m.authErr
			m.mu.Unlock()
			if err != nil {
				return err
			}
			continue
		}

		done := make(chan struct{})
		m.authDone = done
		m.mu.Unlock()

		err := m.authenticate(ctx)

		m.mu.Lock()
		m.authDone = nil
		m.authErr = err
		m.mu.Unlock()
		close(done)

		if err != nil {
			return err
		}
	}
}

// authenticate runs one login attempt and applies the resulting state
// transition. Only the goroutine holding authDone calls it.
func (m *SessionManager) authenticate(ctx context.Context) error {
	cred, err := m.creds.Load(m.platform)
	if err != nil {
		m.transition(internal.StateFailed, err)
		return err
	}

	m.mu.Lock()
	prior := m.session.Artifact
	m.mu.Unlock()

	internal.LogInfo("authenticating %s session", m.platform)
	artifact, rawErr := m.client.Authenticate(ctx, cred, prior)
	if rawErr != nil {
		ge := Classify(m.platform, rawErr)
		switch ge.Kind {
		case internal.ErrChallengeRequired, internal.ErrTwoFactorRequired:
			// Terminal for the process; operator action is required.
			m.transition(internal.StateChallenged, ge)
		default:
			// Includes cancellation: the session must not look ACTIVE
			// after an aborted attempt.
			m.transition(internal.StateFailed, ge)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ge.Kind != internal.ErrChallengeRequired && ge.Kind != internal.ErrTwoFactorRequired && ge.Kind != internal.ErrRateLimited {
			// Login failures are surfaced as recoverable authentication
			// errors; the next operation request retries.
			ge = internal.NewGatewayError(m.platform, internal.ErrAuthentication, ge.Message).WithCause(rawErr)
		}
		internal.LogGatewayError(ge)
		return ge
	}

	if ctx.Err() != nil {
		m.transition(internal.StateFailed, ctx.Err())
		return ctx.Err()
	}

	m.mu.Lock()
	now := time.Now()
	m.session.State = internal.StateActive
	m.session.Artifact = artifact
	m.session.CreatedAt = now
	m.session.LastUsedAt = now
	m.session.LastError = ""
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(artifact); err != nil {
			internal.LogWarn("failed to persist %s session artifact: %v", m.platform, err)
		}
	}

	internal.LogInfo("%s session is active", m.platform)
	return nil
}

func (m *SessionManager) transition(state internal.SessionState, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.State = state
	if cause != nil {
		m.session.LastError = cause.Error()
	}
	internal.LogDebug("%s session state -> %s", m.platform, state)
}

// Execute runs one platform call: ensure the session is active, honor the
// pacing window, perform the call. A remotely invalidated session is expired,
// re-authenticated, and the call retried exactly once; a second invalidation
// surfaces an error instead of looping.
func (m *SessionManager) Execute(ctx context.Context, spec internal.CallSpec) (*internal.RawResult, error) {
	const invalidationRetries = 1

	for attempt := 0; ; attempt++ {
		if err := m.EnsureActive(ctx); err != nil {
			return nil, err
		}

		if err := m.pacer.Acquire(ctx, m.platform); err != nil {
			return nil, err
		}

		m.mu.Lock()
		artifact := m.session.Artifact
		m.session.LastUsedAt = time.Now()
		m.mu.Unlock()

		res, err := m.client.Call(ctx, artifact, spec)

		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var ge *internal.GatewayError
		if err != nil {
			ge = Classify(m.platform, err)
		} else if res != nil && res.StatusCode >= 400 {
			ge = ClassifyResponse(m.platform, res)
		}

		// SessionInvalidated is an internal signal and never reaches the
		// caller: whether the client detected the invalidation or the
		// classifier did, the reaction is the same expire-and-retry.
		invalidated := m.client.DetectInvalidation(res, err) ||
			(ge != nil && ge.Kind == internal.ErrSessionInvalidated)

		if invalidated {
			m.transition(internal.StateExpired, internal.NewGatewayError(m.platform, internal.ErrSessionInvalidated, "session invalidated remotely"))
			if attempt < invalidationRetries {
				internal.LogWarn("%s session invalidated during %s, re-authenticating once", m.platform, spec.Name)
				continue
			}
			return nil, internal.NewGatewayError(m.platform, internal.ErrAuthentication,
				"session was invalidated again immediately after re-authentication")
		}

		if ge != nil {
			internal.LogGatewayError(ge)
			return nil, ge
		}

		return res, nil
	}
}
