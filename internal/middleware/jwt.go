package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/utils"
)

// JWTAuth returns an Echo middleware that validates an access token and
// injects the account id, tenant id and role claims into the request
// context.  The token is read from the "Authorization: Bearer" header or,
// for websocket upgrades where browsers cannot set headers, from the
// access_token query parameter.  Handlers read the identity through
// AccountID, TenantID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			// Signature, expiry and required claims are all checked by
			// ParseAccessToken; any failure is a plain 401.
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(ctxAccountID, claims.AccountID)
			c.Set(ctxTenantID, claims.TenantID)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

func bearer(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.QueryParam("access_token")
}
