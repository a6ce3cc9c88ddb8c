package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/middleware"
	"github.com/iliyamo/restaurant-orders/internal/model"
)

// RegisterAdmin registers the management routes.  All of them require
// the admin role.
func RegisterAdmin(g *echo.Group, h Handlers, cache echo.MiddlewareFunc) {
	admin := middleware.RequireRole(model.RoleAdmin)

	// ---- Categories ----
	g.POST("/categories", h.Catalog.CreateCategory, admin)
	g.PUT("/categories/:id", h.Catalog.UpdateCategory, admin)
	g.DELETE("/categories/:id", h.Catalog.DeleteCategory, admin)

	// ---- Meals ----
	g.POST("/meals", h.Catalog.CreateMeal, admin)
	g.PUT("/meals/:id", h.Catalog.UpdateMeal, admin)
	g.DELETE("/meals/:id", h.Catalog.DeleteMeal, admin)
	g.POST("/meals/:id/image", h.Catalog.UploadMealImage, admin)

	// ---- Tables ----
	g.POST("/tables", h.Tables.Create, admin)
	g.DELETE("/tables/:id", h.Tables.Disable, admin)
	g.POST("/tables/:id/toggle", h.Tables.Toggle, admin)

	// ---- Accounts ----
	g.GET("/accounts", h.Accounts.List, use(admin, cache)...)
	g.POST("/accounts", h.Accounts.Create, admin)
	g.PUT("/accounts/:id", h.Accounts.Update, admin)
	g.DELETE("/accounts/:id", h.Accounts.Disable, admin)

	// ---- Reports and plans ----
	g.GET("/reports/sales", h.Reports.Sales, use(admin, cache)...)
	g.GET("/plans", h.Reports.PlanOverview, use(admin, cache)...)
	g.GET("/plans/:plan/inquiry", h.Reports.PlanInquiry, use(admin, cache)...)
}
