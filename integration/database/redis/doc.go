// Package redis provides Redis client initialization and health checking for
// the redis-backed credential store and broadcast channel.
//
// Connect validates the connection URL, dials with fibonacci-backoff retries,
// and verifies connectivity with a ping before returning the client, so a
// transient network hiccup at startup does not surface as a hard failure.
//
// Configuration maps from environment variables:
//
//	cfg := redis.Config{}
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// Both redis:// and rediss:// (TLS) URL schemes are supported; anything else
// fails with ErrFailedToParseRedisConnString.
//
// Healthcheck returns a probe function suitable for readiness endpoints:
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//		// report unhealthy
//	}
//
// Errors are stable sentinels checkable with errors.Is; underlying go-redis
// errors stay attached for logging.
package redis
