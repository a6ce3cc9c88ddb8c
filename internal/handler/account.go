package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/service"
)

// AccountHandler serves staff account management (admin only).
type AccountHandler struct {
	Accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{Accounts: accounts}
}

// List handles GET /v1/accounts.
func (h *AccountHandler) List(c echo.Context) error {
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Accounts.List(ctx, tenantID)
	if err != nil {
		return fail(c, err, "list failed")
	}
	return c.JSON(http.StatusOK, list)
}

// Create handles POST /v1/accounts.
func (h *AccountHandler) Create(c echo.Context) error {
	var req service.AccountInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Accounts.Create(ctx, tenantID, req)
	if err != nil {
		return fail(c, err, "create failed")
	}
	return c.JSON(http.StatusCreated, a)
}

// Update handles PUT /v1/accounts/:id (name and role).
func (h *AccountHandler) Update(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req service.AccountInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.Accounts.Update(ctx, tenantID, id, req)
	if err != nil {
		return fail(c, err, "update failed")
	}
	return c.JSON(http.StatusOK, a)
}

// Disable handles DELETE /v1/accounts/:id.
func (h *AccountHandler) Disable(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, accountID := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Accounts.Disable(ctx, tenantID, accountID, id); err != nil {
		return fail(c, err, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}
