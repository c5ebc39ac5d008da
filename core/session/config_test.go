package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantpilot/sessionkit/core/config"
	"github.com/quantpilot/sessionkit/core/session"
)

func TestConfig_EnvMapping(t *testing.T) {
	t.Setenv("SESSION_STORE_DIR", "/var/lib/app/session")
	t.Setenv("SESSION_SYNC_CHANNEL", "app:auth-events")

	var cfg session.Config
	require.NoError(t, config.Load(&cfg))

	require.Equal(t, "/var/lib/app/session", cfg.StoreDir)
	require.Equal(t, "app:auth-events", cfg.SyncChannel)
}
