package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/handler"
	"github.com/iliyamo/restaurant-orders/internal/middleware"
	"github.com/iliyamo/restaurant-orders/internal/model"
)

// Handlers bundles every handler the API serves.
type Handlers struct {
	Auth     *handler.AuthHandler
	Orders   *handler.OrderHandler
	Catalog  *handler.CatalogHandler
	Tables   *handler.TableHandler
	Accounts *handler.AccountHandler
	Reports  *handler.ReportHandler
	Realtime *handler.RealtimeHandler
	Ready    echo.HandlerFunc
}

// Options carries the middleware shared by the route groups.  Any of
// the middleware may be nil.
type Options struct {
	JWTSecret string
	Cache     echo.MiddlewareFunc // per-tenant GET cache, after each role gate
	AuthLimit echo.MiddlewareFunc // per-address bucket on the auth routes
	APILimit  echo.MiddlewareFunc // per-tenant bucket on authenticated routes
}

// use returns the non-nil middleware of mws.
func use(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Register wires every route onto e.
func Register(e *echo.Echo, h Handlers, opt Options) {
	jwt := middleware.JWTAuth(opt.JWTSecret)
	RegisterRoutes(e, h.Ready)
	RegisterAuth(e, h.Auth, jwt, use(opt.AuthLimit), use(opt.APILimit))

	// The websocket upgrade hijacks the connection; it never goes through
	// the cache.
	e.GET("/v1/realtime", h.Realtime.Stream, use(jwt, opt.APILimit)...)

	g := e.Group("/v1", use(jwt, opt.APILimit)...)
	RegisterStaff(g, h, opt.Cache)
	RegisterAdmin(g, h, opt.Cache)
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterAuth registers sign up, login and token routes under /v1/auth
// and the profile routes that need an access token.  Logout stays public
// so an expired access token can still end a session with its refresh
// token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwt echo.MiddlewareFunc, public, private []echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", public...)
	g.POST("/signup", a.SignUp)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", append([]echo.MiddlewareFunc{jwt}, private...)...)
	auth.GET("/me", a.Me)
	auth.PUT("/tenant", a.UpdateBranding, middleware.RequireRole(model.RoleAdmin))
}
