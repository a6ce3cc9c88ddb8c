package config

import (
	"strings"
	"time"
)

// RateLimitConfig configures one Redis token bucket.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip, user, tenant, route or a combination such as ip_route
	Prefix         string
}

// Two buckets guard the API: "auth" throttles sign up and login per
// client address, "api" caps each tenant's authenticated traffic.
var rateLimitDefaults = map[string]RateLimitConfig{
	"auth": {Capacity: 10, RefillTokens: 1, RefillInterval: 6 * time.Second, TTL: 10 * time.Minute, KeyStrategy: "ip_route"},
	"api":  {Capacity: 120, RefillTokens: 2, RefillInterval: time.Second, TTL: 10 * time.Minute, KeyStrategy: "tenant"},
}

// LoadRateLimitConfig reads the bucket of scope from
// RATE_LIMIT_<SCOPE>_* variables.  RATE_LIMIT_ENABLED switches every
// scope off at once.
func LoadRateLimitConfig(scope string) RateLimitConfig {
	def, ok := rateLimitDefaults[scope]
	if !ok {
		def = rateLimitDefaults["api"]
	}
	env := "RATE_LIMIT_" + strings.ToUpper(scope) + "_"
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true) && envBool(env+"ENABLED", true),
		Capacity:       envInt(env+"CAPACITY", def.Capacity),
		RefillTokens:   envInt(env+"REFILL_TOKENS", def.RefillTokens),
		RefillInterval: envDur(env+"REFILL_INTERVAL", def.RefillInterval),
		TTL:            envDur(env+"TTL", def.TTL),
		KeyStrategy:    getenv(env+"KEY_STRATEGY", def.KeyStrategy),
		Prefix:         "rl:" + scope,
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	// the bucket must outlive a full refill or idle clients get reset early
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}
