package config

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions locates the Redis server behind the rate limiter and the
// listing cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// LoadRedisOptions reads REDIS_HOST and REDIS_PORT, falling back to
// REDIS_ADDR and then localhost:6379, plus REDIS_PASSWORD, REDIS_DB and
// REDIS_TLS.
func LoadRedisOptions() RedisOptions {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisOptions{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
	}
}

// NewRedisClient connects and pings with a two second budget.  It returns
// nil when the server is unreachable; callers then run without rate
// limiting and caching.
func NewRedisClient(o RedisOptions) *redis.Client {
	opts := &redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}
	if o.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
