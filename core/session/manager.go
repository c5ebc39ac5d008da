package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantpilot/sessionkit/core/authclient"
	"github.com/quantpilot/sessionkit/core/credstore"
	"github.com/quantpilot/sessionkit/pkg/broadcast"
)

// invalidateTimeout caps the fire-and-forget server-side token revocation on
// logout; logout itself never waits for it.
const invalidateTimeout = 10 * time.Second

// AuthService is the remote collaborator that issues and validates tokens.
// The manager performs no local credential validation; the service is the
// sole authority.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, params authclient.RegisterParams) (string, error)
	CurrentUser(ctx context.Context, token string) (authclient.User, error)
}

// TokenInvalidator is an optional AuthService extension. When implemented,
// Logout revokes the token server-side in the background, fire-and-forget.
type TokenInvalidator interface {
	InvalidateToken(ctx context.Context, token string) error
}

// Manager owns the authentication session for one application instance:
// the current user identity, the bearer token, hydration from the persistent
// store at startup, and synchronization of login/logout events with other
// instances sharing the same store and broadcast channel.
//
// All methods are safe for concurrent use. Login and Register are guarded by
// a single in-flight gate so a double-submitted form cannot race two token
// exchanges; the second call fails fast with ErrAuthInFlight.
type Manager struct {
	auth                   AuthService
	store                  credstore.Store
	bus                    broadcast.Broadcaster[Event]
	logger                 *slog.Logger
	refreshOnStorageChange bool

	mu    sync.RWMutex
	user  *authclient.User
	token string
	// writtenToken is the last token this instance persisted itself. Watch
	// delivery is asynchronous, so the echo of our own write can arrive after
	// a later logout has already emptied token; this field keeps such an echo
	// recognizable as our own.
	writtenToken string

	hydrated   atomic.Bool
	started    atomic.Bool
	authFlight atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a session manager backed by the given auth service.
func New(auth AuthService, opts ...Option) (*Manager, error) {
	if auth == nil {
		return nil, ErrAuthServiceRequired
	}

	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Manager{
		auth:                   auth,
		store:                  cfg.store,
		bus:                    cfg.bus,
		logger:                 cfg.logger,
		refreshOnStorageChange: cfg.refreshOnStorageChange,
	}, nil
}

// Login exchanges credentials for a bearer token, persists it, fetches the
// full profile with a second round trip, persists that too, and announces
// the login to other instances. Auth service errors propagate unmodified so
// the UI can display the server's message; there is no retry.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	if !m.authFlight.CompareAndSwap(false, true) {
		return Session{}, ErrAuthInFlight
	}
	defer m.authFlight.Store(false)

	token, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return m.completeAuth(ctx, token)
}

// Register creates an account and logs the new user in. Same contract shape
// as Login: errors (duplicate email, validation) propagate unmodified.
func (m *Manager) Register(ctx context.Context, params authclient.RegisterParams) (Session, error) {
	if !m.authFlight.CompareAndSwap(false, true) {
		return Session{}, ErrAuthInFlight
	}
	defer m.authFlight.Store(false)

	token, err := m.auth.Register(ctx, params)
	if err != nil {
		return Session{}, err
	}
	return m.completeAuth(ctx, token)
}

// completeAuth persists the freshly issued token, validates it by fetching
// the profile, and publishes the login. A profile-fetch failure clears the
// persisted token again: the manager never holds a token without a validated
// identity behind it.
func (m *Manager) completeAuth(ctx context.Context, token string) (Session, error) {
	// Record the token in memory before it hits the store so the storage
	// observation loop recognizes the write as our own.
	m.mu.Lock()
	m.token = token
	m.writtenToken = token
	m.mu.Unlock()

	m.setValue(ctx, KeyToken, token)

	user, err := m.auth.CurrentUser(ctx, token)
	if err != nil {
		m.clearSession(ctx)
		return Session{}, err
	}

	m.setState(&user, token)
	m.persistUser(ctx, user)
	m.publish(ctx, Event{Type: EventLogin, User: &user})

	return m.Current(), nil
}

// Logout clears the session locally and unconditionally: storage keys and
// in-memory state are wiped with no network round trip, the logout is
// announced to other instances, and server-side revocation (when the auth
// service supports it) happens in the background without blocking.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	m.user = nil
	m.token = ""
	m.mu.Unlock()

	m.clearStorage(ctx)
	m.publish(ctx, Event{Type: EventLogout})

	if inv, ok := m.auth.(TokenInvalidator); ok && token != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
			defer cancel()
			if err := inv.InvalidateToken(ctx, token); err != nil {
				m.logger.DebugContext(ctx, "session: server-side token revocation failed",
					slog.String("error", err.Error()))
			}
		}()
	}
}

// RefreshUser re-validates the persisted token against the auth service.
// A valid token replaces the in-memory and persisted profile; any validation
// failure clears everything and leaves the session anonymous, so an expired
// session looks like "never logged in" rather than an error. With no token
// in storage this is a no-op making zero network calls.
//
// The only returned error is the caller's own context cancellation, which is
// deliberately not treated as a credential failure.
func (m *Manager) RefreshUser(ctx context.Context) error {
	token, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			m.logger.WarnContext(ctx, "session: credential store read failed, treating as no session",
				slog.String("error", err.Error()))
		}
		return nil
	}
	return m.validateToken(ctx, token)
}

// validateToken runs the validate-or-clear flow shared by RefreshUser,
// startup hydration, and the storage-observation fallback.
func (m *Manager) validateToken(ctx context.Context, token string) error {
	user, err := m.auth.CurrentUser(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.InfoContext(ctx, "session: token validation failed, downgrading to anonymous")
		m.clearSession(ctx)
		return nil
	}

	m.setState(&user, token)
	m.persistUser(ctx, user)
	return nil
}

// Current returns a snapshot of the session state.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Session{User: m.userCopyLocked(), Token: m.token, Status: m.statusLocked()}
}

// User returns a copy of the authenticated user's profile, or nil.
func (m *Manager) User() *authclient.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userCopyLocked()
}

// Token returns the current bearer token, or empty when anonymous.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Status returns the lifecycle state. It reports StatusHydrating until the
// startup hydration has settled, even if a cached profile was loaded
// optimistically in the meantime.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

// IsLoading reports whether startup hydration is still in progress. It
// transitions from true to false exactly once per manager lifetime.
func (m *Manager) IsLoading() bool {
	return !m.hydrated.Load()
}

// IsAuthenticated reports whether a validated identity is present.
func (m *Manager) IsAuthenticated() bool {
	return m.Current().IsAuthenticated()
}

// IsAdmin reports whether the current user has the admin flag.
func (m *Manager) IsAdmin() bool {
	return m.Current().IsAdmin()
}

func (m *Manager) statusLocked() Status {
	if !m.hydrated.Load() {
		return StatusHydrating
	}
	if m.user != nil && m.token != "" {
		return StatusAuthenticated
	}
	return StatusAnonymous
}

// isOwnToken reports whether a watched token value originated from this
// instance, either as the live token or as the last value it wrote.
func (m *Manager) isOwnToken(value string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return value == m.token || (m.writtenToken != "" && value == m.writtenToken)
}

func (m *Manager) userCopyLocked() *authclient.User {
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) setState(user *authclient.User, token string) {
	m.mu.Lock()
	m.user = user
	m.token = token
	m.mu.Unlock()
}

// clearSession wipes both memory and storage; the self-healing path for a
// stale credential.
func (m *Manager) clearSession(ctx context.Context) {
	m.setState(nil, "")
	m.clearStorage(ctx)
}

// persistUser mirrors the validated profile into the store. All storage
// writes are best-effort: a missing or failing store never blocks login.
func (m *Manager) persistUser(ctx context.Context, user authclient.User) {
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	m.setValue(ctx, KeyUser, string(data))
	m.setValue(ctx, KeyUpdatedAt, strconv.FormatInt(time.Now().UnixMilli(), 10))
}

func (m *Manager) setValue(ctx context.Context, key, value string) {
	if err := m.store.Set(ctx, key, value); err != nil {
		m.logger.WarnContext(ctx, "session: credential store write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

func (m *Manager) clearStorage(ctx context.Context) {
	if err := m.store.Delete(ctx, KeyToken, KeyUser, KeyUpdatedAt); err != nil {
		m.logger.WarnContext(ctx, "session: credential store clear failed",
			slog.String("error", err.Error()))
	}
}

func (m *Manager) publish(ctx context.Context, event Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Broadcast(ctx, broadcast.Message[Event]{Data: event}); err != nil {
		m.logger.WarnContext(ctx, "session: failed to broadcast auth event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()))
	}
}
