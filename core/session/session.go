package session

import (
	"github.com/quantpilot/sessionkit/core/authclient"
)

// Storage keys owned exclusively by the session manager. They are written
// together on every authenticated state change and removed together on
// logout or token invalidation.
const (
	// KeyToken holds the bearer token.
	KeyToken = "auth:token"
	// KeyUser holds the JSON-serialized user profile.
	KeyUser = "auth:user"
	// KeyUpdatedAt holds the last-write time as unix milliseconds.
	KeyUpdatedAt = "auth:updated_at"
)

// Status describes the manager's position in its lifecycle.
type Status int

const (
	// StatusHydrating is the initial state: the manager is still determining
	// whether a persisted credential is valid.
	StatusHydrating Status = iota
	// StatusAuthenticated means a validated user identity is present.
	StatusAuthenticated
	// StatusAnonymous means auth state is determined and no user is logged in.
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusHydrating:
		return "hydrating"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is an immutable snapshot of the current authentication state.
type Session struct {
	User   *authclient.User
	Token  string
	Status Status
}

// IsAuthenticated reports whether the snapshot carries a validated identity.
func (s Session) IsAuthenticated() bool {
	return s.User != nil && s.Token != ""
}

// IsAdmin reports whether the snapshot's user has the admin flag set.
func (s Session) IsAdmin() bool {
	return s.User != nil && s.User.IsAdmin
}

// EventType discriminates cross-instance auth events.
type EventType string

const (
	// EventLogin announces that some instance completed a login; the event
	// carries the validated profile so receivers need not re-fetch it.
	EventLogin EventType = "AUTH_LOGIN"
	// EventLogout announces that some instance logged out.
	EventLogout EventType = "AUTH_LOGOUT"
)

// Event is the ephemeral message broadcast between application instances to
// keep their sessions eventually consistent. It is never persisted.
type Event struct {
	Type EventType        `json:"type"`
	User *authclient.User `json:"user,omitempty"`
}
