package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// cache stores one loaded value per configuration type.
	cache sync.Map // reflect.Type -> value

	dotenvOnce sync.Once
)

// Load populates cfg from environment variables, returning the cached value
// if this configuration type was loaded before. A .env file in the working
// directory is loaded once per process, silently ignored when absent.
func Load[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(*cfg)
	if cached, ok := cache.Load(typ); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", typ, err)
	}

	cache.Store(typ, *cfg)
	return nil
}

// MustLoad is Load, panicking on failure. Useful at startup where a missing
// required variable should abort immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
