package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the per-tenant response cache.  Any
// change event of a tenant drops all of its entries, so TTL only bounds
// how long an entry survives a missed invalidation.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      safeMethods(getenv("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 60*time.Second),
		Prefix:       getenv("CACHE_PREFIX", "ro:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 256<<10),
	}
}

// safeMethods parses a comma separated method list.  Only GET and HEAD
// are kept; anything with side effects is never replayed from cache.
func safeMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		switch p = strings.TrimSpace(strings.ToUpper(p)); p {
		case "GET", "HEAD":
			m[p] = true
		}
	}
	return m
}
