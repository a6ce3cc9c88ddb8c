package middleware

// identity.go holds the context keys JWTAuth fills and the accessors
// handlers and the other middleware read them through.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

const (
	ctxAccountID = "user_id"
	ctxTenantID  = "tenant_id"
	ctxRole      = "role"
)

// AccountID returns the authenticated account id, or 0.
func AccountID(c echo.Context) uint64 {
	id, _ := c.Get(ctxAccountID).(uint64)
	return id
}

// TenantID returns the tenant the authenticated account belongs to, or 0.
func TenantID(c echo.Context) uint64 {
	id, _ := c.Get(ctxTenantID).(uint64)
	return id
}

// Role returns the authenticated account's role, or "".
func Role(c echo.Context) model.Role {
	r, _ := c.Get(ctxRole).(string)
	return model.Role(r)
}

// userID renders the account id for keys.  It returns "guest" when no
// account is authenticated.
func userID(c echo.Context) string {
	if id := AccountID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
