package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/quantpilot/sessionkit/core/authclient"
	"github.com/quantpilot/sessionkit/core/credstore"
	"github.com/quantpilot/sessionkit/pkg/broadcast"
)

// Start hydrates the session from the persistent store and launches the two
// cross-instance synchronization loops. It must be called once; a second
// call returns ErrAlreadyStarted.
//
// Hydration first loads any cached profile optimistically, then validates
// the stored token against the auth service: a valid token settles the
// session as authenticated, anything else (no token, rejection, network
// failure) settles it as anonymous. Either way IsLoading flips to false
// exactly once.
//
// The two sync paths are redundant by design and each applied idempotently:
//
//  1. Broadcast events carry the profile and are applied directly, no
//     re-fetch.
//  2. Storage observation re-validates an externally written token against
//     the auth service rather than trusting the raw value, and logs out
//     locally, without a network call, when the token key disappears.
//
// The loops run until ctx is cancelled or Close is called.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.hydrate(ctx)
	m.hydrated.Store(true)

	if m.bus != nil {
		sub := m.bus.Subscribe(runCtx)
		m.wg.Add(1)
		go m.eventLoop(runCtx, sub)
	}

	changes, err := m.store.Watch(runCtx)
	if err != nil {
		m.logger.WarnContext(ctx, "session: storage observation unavailable",
			slog.String("error", err.Error()))
		return nil
	}
	m.wg.Add(1)
	go m.watchLoop(runCtx, changes)

	return nil
}

// Close stops the synchronization loops. Idempotent.
func (m *Manager) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *Manager) hydrate(ctx context.Context) {
	token, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			m.logger.WarnContext(ctx, "session: credential store read failed during hydration",
				slog.String("error", err.Error()))
		}
		return
	}

	// Optimistic hydration: expose the cached profile while validation is in
	// flight so a reload doesn't flash an anonymous state for a valid user.
	if raw, err := m.store.Get(ctx, KeyUser); err == nil {
		var cached authclient.User
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			m.setState(&cached, token)
		}
	}

	if err := m.validateToken(ctx, token); err != nil {
		// Context cancelled mid-hydration: settle as anonymous in memory but
		// leave storage intact for the next start.
		m.setState(nil, "")
	}
}

func (m *Manager) eventLoop(ctx context.Context, sub broadcast.Subscriber[Event]) {
	defer m.wg.Done()
	defer sub.Close()

	for msg := range sub.Receive(ctx) {
		m.applyEvent(ctx, msg.Data)
	}
}

// applyEvent applies a cross-instance auth event directly from its payload.
// Events may be duplicated or arrive out of order relative to storage
// changes; applying them is idempotent.
func (m *Manager) applyEvent(ctx context.Context, event Event) {
	switch event.Type {
	case EventLogin:
		if event.User == nil {
			return
		}
		user := *event.User
		// The originating instance persisted the token before broadcasting;
		// pick it up from the shared store, best-effort.
		token, err := m.store.Get(ctx, KeyToken)
		if err != nil {
			token = m.Token()
		}
		if token == "" {
			// A profile without a token is unusable; wait for the storage
			// observation path to deliver one.
			return
		}
		m.setState(&user, token)
		m.logger.DebugContext(ctx, "session: applied broadcast login",
			slog.String("email", user.Email))
	case EventLogout:
		m.setState(nil, "")
		m.logger.DebugContext(ctx, "session: applied broadcast logout")
	}
}

func (m *Manager) watchLoop(ctx context.Context, changes <-chan credstore.Change) {
	defer m.wg.Done()

	for change := range changes {
		if change.Key != KeyToken {
			continue
		}

		if !change.Present {
			// Another instance cleared the credential: log out locally with
			// no network call.
			m.setState(nil, "")
			continue
		}

		// Skip echoes of tokens this instance wrote itself, mirroring storage
		// events not firing in the tab that wrote them. The echo can be
		// dequeued after a later logout has emptied the live token, so the
		// last written value is checked too.
		if m.isOwnToken(change.Value) {
			continue
		}

		if !m.refreshOnStorageChange {
			continue
		}
		// Re-validate rather than trusting the written value blindly.
		if err := m.validateToken(ctx, change.Value); err != nil {
			return
		}
	}
}
