package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/service"
)

// TableHandler serves the table registry.
type TableHandler struct {
	Tables *service.TableService
}

func NewTableHandler(tables *service.TableService) *TableHandler {
	return &TableHandler{Tables: tables}
}

type tableReq struct {
	Number int `json:"number"`
}

// List handles GET /v1/tables.
func (h *TableHandler) List(c echo.Context) error {
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Tables.List(ctx, tenantID)
	if err != nil {
		return fail(c, err, "list failed")
	}
	return c.JSON(http.StatusOK, list)
}

// Create handles POST /v1/tables.
func (h *TableHandler) Create(c echo.Context) error {
	var req tableReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tables.Create(ctx, tenantID, req.Number)
	if err != nil {
		return fail(c, err, "create failed")
	}
	return c.JSON(http.StatusCreated, t)
}

// Disable handles DELETE /v1/tables/:id.
func (h *TableHandler) Disable(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Tables.Disable(ctx, tenantID, id); err != nil {
		return fail(c, err, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Toggle handles POST /v1/tables/:id/toggle.
func (h *TableHandler) Toggle(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tables.ToggleOccupied(ctx, tenantID, id)
	if err != nil {
		return fail(c, err, "toggle failed")
	}
	return c.JSON(http.StatusOK, t)
}
