package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpilot/sessionkit/core/config"
)

type testAPIConfig struct {
	BaseURL string        `env:"TEST_API_BASE_URL,required"`
	Timeout time.Duration `env:"TEST_API_TIMEOUT" envDefault:"15s"`
}

type testSyncConfig struct {
	Channel string `env:"TEST_SYNC_CHANNEL" envDefault:"sessionkit:auth"`
}

func TestLoad(t *testing.T) {
	// No t.Parallel: tests share process environment via t.Setenv.

	t.Run("loads values and defaults", func(t *testing.T) {
		t.Setenv("TEST_API_BASE_URL", "http://api.local")

		var cfg testAPIConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "http://api.local", cfg.BaseURL)
		assert.Equal(t, 15*time.Second, cfg.Timeout)
	})

	t.Run("returns cached value on second load", func(t *testing.T) {
		t.Setenv("TEST_API_BASE_URL", "http://other.local")

		var cfg testAPIConfig
		require.NoError(t, config.Load(&cfg))
		// First load won; the changed environment is not re-read.
		assert.Equal(t, "http://api.local", cfg.BaseURL)
	})

	t.Run("missing required variable fails", func(t *testing.T) {
		type strictConfig struct {
			Secret string `env:"TEST_DEFINITELY_UNSET_SECRET,required"`
		}
		var cfg strictConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "strictConfig")
	})

	t.Run("different types cache independently", func(t *testing.T) {
		var cfg testSyncConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "sessionkit:auth", cfg.Channel)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on failure", func(t *testing.T) {
		type brokenConfig struct {
			Value string `env:"TEST_ANOTHER_UNSET_VALUE,required"`
		}
		assert.Panics(t, func() {
			var cfg brokenConfig
			config.MustLoad(&cfg)
		})
	})
}
