package session

import (
	"io"
	"log/slog"

	"github.com/quantpilot/sessionkit/core/credstore"
	"github.com/quantpilot/sessionkit/pkg/broadcast"
)

// Config holds session manager settings with environment variable mapping.
type Config struct {
	// StoreDir is where the file-backed credential store keeps its document.
	StoreDir string `env:"SESSION_STORE_DIR" envDefault:".sessionkit"`
	// SyncChannel names the broadcast channel used for cross-instance events.
	SyncChannel string `env:"SESSION_SYNC_CHANNEL" envDefault:"sessionkit:auth"`
}

type managerConfig struct {
	store                  credstore.Store
	bus                    broadcast.Broadcaster[Event]
	logger                 *slog.Logger
	refreshOnStorageChange bool
}

func defaultManagerConfig() *managerConfig {
	return &managerConfig{
		store:                  credstore.NewMemory(),
		logger:                 slog.New(slog.NewTextHandler(io.Discard, nil)),
		refreshOnStorageChange: true,
	}
}

// Option is a functional option for configuring the session manager.
type Option func(*managerConfig)

// WithStore sets the persistent credential store. Defaults to an in-memory
// store, which keeps the manager fully functional when no durable storage is
// available (nothing survives a restart in that case).
func WithStore(store credstore.Store) Option {
	return func(c *managerConfig) {
		if store != nil {
			c.store = store
		}
	}
}

// WithBroadcaster sets the cross-instance event channel. Without one, the
// manager relies solely on the storage-observation fallback.
func WithBroadcaster(bus broadcast.Broadcaster[Event]) Option {
	return func(c *managerConfig) {
		c.bus = bus
	}
}

// WithLogger configures structured logging for swallowed internal errors
// (storage writes, broadcast publishes).
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRefreshOnStorageChange controls whether an observed externally-written
// token triggers re-validation against the auth service. Enabled by default;
// disable only in tests or when the broadcast path is known to be complete.
func WithRefreshOnStorageChange(enabled bool) Option {
	return func(c *managerConfig) {
		c.refreshOnStorageChange = enabled
	}
}
