package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
	"github.com/iliyamo/restaurant-orders/internal/service"
)

// maxImageBytes caps meal image uploads.
const maxImageBytes = 5 << 20

// CatalogHandler serves categories and meals.
type CatalogHandler struct {
	Catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{Catalog: catalog}
}

// ListCategories handles GET /v1/categories.
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Catalog.ListCategories(ctx, tenantID)
	if err != nil {
		return fail(c, err, "list failed")
	}
	return c.JSON(http.StatusOK, list)
}

// CreateCategory handles POST /v1/categories.  The plan's category cap
// answers 403.
func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req service.CategoryInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	cat, err := h.Catalog.CreateCategory(ctx, tenantID, req)
	if err != nil {
		return fail(c, err, "create failed")
	}
	return c.JSON(http.StatusCreated, cat)
}

// UpdateCategory handles PUT /v1/categories/:id.
func (h *CatalogHandler) UpdateCategory(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req service.CategoryInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	cat, err := h.Catalog.UpdateCategory(ctx, tenantID, id, req)
	if err != nil {
		return fail(c, err, "update failed")
	}
	return c.JSON(http.StatusOK, cat)
}

// DeleteCategory handles DELETE /v1/categories/:id.  A category still
// referenced by meals answers 409.
func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.DeleteCategory(ctx, tenantID, id); err != nil {
		return fail(c, err, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMeals handles GET /v1/meals?category_id=&in_stock=true.
func (h *CatalogHandler) ListMeals(c echo.Context) error {
	var f repository.MealFilter
	if v := c.QueryParam("category_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid category_id")
		}
		f.CategoryID = id
	}
	if v := c.QueryParam("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "invalid in_stock")
		}
		f.InStockOnly = b
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Catalog.ListMeals(ctx, tenantID, f)
	if err != nil {
		return fail(c, err, "list failed")
	}
	views := make([]model.MealView, len(list))
	for i, m := range list {
		views[i] = m.View()
	}
	return c.JSON(http.StatusOK, views)
}

// GetMeal handles GET /v1/meals/:id.
func (h *CatalogHandler) GetMeal(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Catalog.GetMeal(ctx, tenantID, id)
	if err != nil {
		return fail(c, err, "load failed")
	}
	return c.JSON(http.StatusOK, m.View())
}

// CreateMeal handles POST /v1/meals.
func (h *CatalogHandler) CreateMeal(c echo.Context) error {
	var req service.MealInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Catalog.CreateMeal(ctx, tenantID, req)
	if err != nil {
		return fail(c, err, "create failed")
	}
	return c.JSON(http.StatusCreated, m.View())
}

// UpdateMeal handles PUT /v1/meals/:id.
func (h *CatalogHandler) UpdateMeal(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req service.MealInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Catalog.UpdateMeal(ctx, tenantID, id, req)
	if err != nil {
		return fail(c, err, "update failed")
	}
	return c.JSON(http.StatusOK, m.View())
}

// DeleteMeal handles DELETE /v1/meals/:id (soft delete).
func (h *CatalogHandler) DeleteMeal(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.DeleteMeal(ctx, tenantID, id); err != nil {
		return fail(c, err, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadMealImage handles POST /v1/meals/:id/image with a multipart
// "image" file.
func (h *CatalogHandler) UploadMealImage(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "image file required")
	}
	if fh.Size > maxImageBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "image too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "image unreadable")
	}
	defer f.Close()

	tenantID, _ := tenant(c)
	// uploads get more time than plain store calls
	ctx := c.Request().Context()

	m, err := h.Catalog.UploadMealImage(ctx, tenantID, id, filepath.Base(fh.Filename), f)
	if err != nil {
		return fail(c, err, "upload failed")
	}
	return c.JSON(http.StatusOK, m.View())
}
