package config

import (
	"strings"
	"time"
)

// CacheConfig configures the Redis cache in front of the public spot
// listing.  Entries live for TTL unless a spot, image or review write
// invalidates them first.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool // upper-cased HTTP methods served from cache
	TTL          time.Duration
	KeyStrategy  string // route, route_query, method_route or method_route_query
	Prefix       string // Redis key prefix, also the invalidation pattern
	MaxBodyBytes int    // larger responses are passed through uncached
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	methods := map[string]bool{}
	for _, m := range splitList(envStr("CACHE_METHODS", "GET")) {
		methods[strings.ToUpper(m)] = true
	}
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methods,
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "spots-cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
