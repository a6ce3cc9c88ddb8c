package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-orders/internal/config"
)

// bucketScript refills continuously: the bucket gains rate tokens per
// millisecond up to capacity and each request takes one.  It returns
// {allowed, whole tokens left, ms until the next token}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', key, 't'))
local seen = tonumber(redis.call('HGET', key, 'ts'))
if tokens == nil or seen == nil then
	tokens = capacity
	seen = now
end
tokens = math.min(capacity, tokens + math.max(0, now - seen) * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
	allowed = 1
	tokens = tokens - 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', key, 't', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', key, ttl_ms)
return { allowed, math.floor(tokens), wait }
`)

// Decision is the outcome of one Limiter.Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a token bucket per key stored in Redis.
type Limiter struct {
	cfg  config.RateLimitConfig
	rdb  *redis.Client
	rate float64 // tokens per millisecond
}

func NewLimiter(cfg config.RateLimitConfig, rdb *redis.Client) *Limiter {
	rate := float64(cfg.RefillTokens) / float64(cfg.RefillInterval.Milliseconds())
	return &Limiter{cfg: cfg, rdb: rdb, rate: rate}
}

// Allow takes a token from key's bucket.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	vals, err := bucketScript.Run(ctx, l.rdb, []string{key},
		time.Now().UnixMilli(),
		l.cfg.Capacity,
		strconv.FormatFloat(l.rate, 'g', -1, 64),
		l.cfg.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected reply %v", vals)
	}
	return Decision{
		Allowed:    vals[0] == 1,
		Remaining:  int(vals[1]),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// NewTokenBucket limits requests per key (see rateKey).  Without Redis,
// or when Redis fails, requests pass.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	limiter := NewLimiter(cfg, rdb)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			d, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				c.Logger().Warnf("[ratelimit] %s: %v", key, err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if d.Allowed {
				return next(c)
			}
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded", "retry_after": secs})
		}
	}
}

// rateKey joins the request attributes named by the key strategy, e.g.
// "ip_route" keys on client address and route.  Unknown names are
// ignored; an empty strategy keys on address, account and route.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	strategy := strings.ToLower(cfg.KeyStrategy)
	if strategy == "" {
		strategy = "ip_user_route"
	}
	parts := []string{cfg.Prefix}
	for _, name := range strings.Split(strategy, "_") {
		switch name {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", userID(c))
		case "tenant":
			parts = append(parts, "tenant", strconv.FormatUint(TenantID(c), 10))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}
