// Package session owns the client-side authentication session for the
// trading assistant: who is logged in, the bearer token proving it, and how
// that state survives restarts and stays consistent across every application
// instance sharing one credential store.
//
// # Core Components
//
// The package provides three main types:
//
//   - Manager: the session state machine and the sole writer of the three
//     credential storage keys
//   - Session: an immutable snapshot of the current state
//   - Event: the cross-instance login/logout message
//
// Collaborators are injected: an AuthService (see core/authclient) that
// issues and validates tokens, a credstore.Store for persistence, and an
// optional broadcast.Broadcaster for low-latency cross-instance sync.
//
// # Basic Usage
//
//	auth, err := authclient.New(baseURL)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	store, err := credstore.NewFile(cfg.StoreDir)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	manager, err := session.New(auth,
//		session.WithStore(store),
//		session.WithBroadcaster(bus),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := manager.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer manager.Close()
//
//	sess, err := manager.Login(ctx, email, password)
//	if err != nil {
//		// auth service error, display verbatim
//	}
//
// # State Machine
//
// A manager moves between three states and never terminates:
//
//	Hydrating -> Authenticated   stored token validates at startup
//	Hydrating -> Anonymous       no stored token, or validation fails
//	Anonymous -> Authenticated   successful Login or Register
//	Authenticated -> Anonymous   Logout, or a failed RefreshUser
//	Authenticated -> Authenticated  successful RefreshUser (profile replaced)
//
// IsLoading reports true until hydration settles, exactly once per manager,
// so callers can distinguish "still determining auth state" from
// "determined: anonymous".
//
// # Error Semantics
//
// Login and Register propagate auth service errors unmodified and untried:
// they answer a user-initiated action awaiting a user-visible message.
// Everything else degrades silently: an invalid token during refresh or
// hydration becomes an anonymous session rather than an error, and storage
// or broadcast failures are logged and swallowed so a missing collaborator
// never blocks core login/logout functionality.
package session
