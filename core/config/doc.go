// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once per process and
// cached for subsequent calls.
//
// A .env file in the working directory is loaded automatically on first use;
// parsing into struct fields is handled by the caarlos0/env library.
//
// Basic usage:
//
//	type AuthConfig struct {
//		BaseURL string        `env:"AUTH_API_BASE_URL,required"`
//		Timeout time.Duration `env:"AUTH_API_REQUEST_TIMEOUT" envDefault:"15s"`
//	}
//
//	var cfg AuthConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	// Or panic on failure, useful at startup
//	config.MustLoad(&cfg)
//
// Repeated loads of the same type return the cached value even if the
// environment changed in between; different types cache independently.
package config
