package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/middleware"
	"github.com/iliyamo/restaurant-orders/internal/model"
)

// RegisterStaff registers the floor and kitchen routes.  Waiters take
// orders and settle them, cooks read the kitchen queue and mark orders
// served, admins reach both.  Reads pass through cache once their gate
// has admitted the caller.
func RegisterStaff(g *echo.Group, h Handlers, cache echo.MiddlewareFunc) {
	anyone := middleware.RequireRole(model.RoleWaiter, model.RoleCook, model.RoleAdmin)
	floor := middleware.RequireRole(model.RoleWaiter, model.RoleAdmin)
	kitchen := middleware.RequireRole(model.RoleCook, model.RoleAdmin)

	// ---- Orders ----
	g.POST("/orders", h.Orders.Place, floor)
	g.PUT("/orders/:id", h.Orders.Edit, floor)
	g.POST("/orders/:id/paid", h.Orders.Pay, floor)
	g.DELETE("/orders/:id", h.Orders.Delete, floor)
	g.GET("/orders/unpaid", h.Orders.Unpaid, use(floor, cache)...)
	g.GET("/orders/paid", h.Orders.Paid, use(floor, cache)...)
	g.GET("/orders/:id", h.Orders.Detail, use(anyone, cache)...)
	g.GET("/orders/:id/receipt", h.Orders.Receipt, use(floor, cache)...)

	g.GET("/orders/unserved", h.Orders.Unserved, use(kitchen, cache)...)
	g.POST("/orders/:id/served", h.Orders.Serve, kitchen)

	// ---- Tables (read) ----
	g.GET("/tables", h.Tables.List, use(floor, cache)...)

	// ---- Catalog (read) ----
	g.GET("/categories", h.Catalog.ListCategories, use(anyone, cache)...)
	g.GET("/meals", h.Catalog.ListMeals, use(anyone, cache)...)
	g.GET("/meals/:id", h.Catalog.GetMeal, use(anyone, cache)...)
}
