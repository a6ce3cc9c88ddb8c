package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-orders/internal/config"
	"github.com/iliyamo/restaurant-orders/internal/events"
)

// storedResponse is what the cache keeps for one request.  Only the
// content type survives; other headers are per request.
type storedResponse struct {
	Status      int    `json:"s"`
	ContentType string `json:"ct,omitempty"`
	Body        []byte `json:"b"`
}

// teeWriter forwards to the client and keeps a copy of the body until it
// grows past limit, after which the copy is abandoned.
type teeWriter struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.body.Len()+len(b) > w.limit {
			w.overflow = true
			w.body.Reset()
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func tenantPrefix(cfg config.CacheConfig, tenantID uint64) string {
	return cfg.Prefix + ":t:" + strconv.FormatUint(tenantID, 10) + ":"
}

// generationKey counts the tenant's committed changes.  It is part of
// every cache key, so bumping it retires all entries of the tenant at
// once, including ones an in-flight request writes afterwards.
func generationKey(cfg config.CacheConfig, tenantID uint64) string {
	return cfg.Prefix + ":gen:" + strconv.FormatUint(tenantID, 10)
}

// cacheKey places the tenant's current generation, the caller's role and
// a hash of the method and concrete request URI under the tenant prefix.
// /orders/1 and /orders/2 get separate entries, as do two roles asking
// for the same URI.
func cacheKey(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client, c echo.Context) (string, error) {
	tenantID := TenantID(c)
	gen, err := rdb.Get(ctx, generationKey(cfg, tenantID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + r.URL.RequestURI()))
	return tenantPrefix(cfg, tenantID) + "g" + strconv.FormatInt(gen, 10) + ":" + string(Role(c)) + ":" +
		hex.EncodeToString(sum[:]), nil
}

func replay(c echo.Context, sr storedResponse) error {
	h := c.Response().Header()
	if sr.ContentType != "" {
		h.Set(echo.HeaderContentType, sr.ContentType)
	}
	h.Set("X-Cache", "HIT")
	return c.Blob(sr.Status, sr.ContentType, sr.Body)
}

// NewRedisCache caches successful responses of the configured methods
// per tenant and role.  Register it on each route after the role gate so
// a cached body is never served to a caller the gate would refuse;
// requests without a tenant pass through.  The CacheInvalidator retires
// a tenant's entries whenever its data changes.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] || TenantID(c) == 0 {
				return next(c)
			}

			ctx := c.Request().Context()
			key, err := cacheKey(ctx, cfg, rdb, c)
			if err != nil {
				return next(c)
			}

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var sr storedResponse
				if json.Unmarshal(raw, &sr) == nil && sr.Status != 0 {
					return replay(c, sr)
				}
			}

			tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = tw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if tw.status != http.StatusOK || tw.overflow {
				return nil
			}
			raw, err := json.Marshal(storedResponse{
				Status:      tw.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        tw.body.Bytes(),
			})
			if err == nil {
				_ = rdb.Set(context.WithoutCancel(ctx), key, raw, ttl).Err()
			}
			return nil
		}
	}
}

// CacheInvalidator drops a tenant's cached responses when one of its
// change events is published.
type CacheInvalidator struct {
	cfg     config.CacheConfig
	rdb     *redis.Client
	log     echo.Logger
	timeout time.Duration
}

func NewCacheInvalidator(cfg config.CacheConfig, rdb *redis.Client, log echo.Logger) *CacheInvalidator {
	return &CacheInvalidator{cfg: cfg, rdb: rdb, log: log, timeout: 2 * time.Second}
}

// Handle is subscribed to the bus ahead of the realtime hub.  It bumps
// the tenant's generation before returning, so a client refetching on
// the notification misses the cache.  Stale keys are swept on their own
// goroutine.
func (ci *CacheInvalidator) Handle(e events.Event) {
	if ci.rdb == nil || !ci.cfg.Enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ci.timeout)
	defer cancel()
	if _, err := ci.Bump(ctx, e.TenantID); err != nil {
		ci.log.Warnf("[cache] bump tenant %d: %v", e.TenantID, err)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ci.timeout)
		defer cancel()
		if _, err := ci.Invalidate(ctx, e.TenantID); err != nil {
			ci.log.Warnf("[cache] invalidate tenant %d: %v", e.TenantID, err)
		}
	}()
}

// Bump advances tenantID's generation and returns the new value.
func (ci *CacheInvalidator) Bump(ctx context.Context, tenantID uint64) (int64, error) {
	return ci.rdb.Incr(ctx, generationKey(ci.cfg, tenantID)).Result()
}

// Invalidate deletes every cached response of tenantID and returns how
// many keys were removed.
func (ci *CacheInvalidator) Invalidate(ctx context.Context, tenantID uint64) (int, error) {
	match := tenantPrefix(ci.cfg, tenantID) + "*"
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := ci.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := ci.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
