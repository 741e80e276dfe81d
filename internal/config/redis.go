package config

// Redis backs the refresh-session cache and distributed rate limiting.  The
// client is optional infrastructure: when the ping fails at startup the
// constructor returns nil and callers degrade gracefully — the session store
// flags itself degraded and the rate limiter falls back to per-process
// counters.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from the already-loaded configuration and
// verifies it with a short ping.  A nil return means the cache is
// unreachable; it is never an error the caller should stop on.
func NewRedisClient(cfg Config) *redis.Client {
	var tlsConf *tls.Config
	if cfg.RedisTLS {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
