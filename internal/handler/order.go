package handler

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/receipt"
	"github.com/iliyamo/restaurant-orders/internal/service"
)

// OrderHandler serves the order workflow.  Waiters place, edit, settle
// and delete orders; cooks read the kitchen queue and mark orders served.
type OrderHandler struct {
	Orders   *service.OrderService
	Receipts *receipt.Renderer
	Loc      *time.Location
}

func NewOrderHandler(orders *service.OrderService, receipts *receipt.Renderer, loc *time.Location) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandler{Orders: orders, Receipts: receipts, Loc: loc}
}

// Place handles POST /v1/orders.
func (h *OrderHandler) Place(c echo.Context) error {
	var req service.OrderInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, accountID := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Place(ctx, tenantID, accountID, req)
	if err != nil {
		return fail(c, err, "place order failed")
	}
	return c.JSON(http.StatusCreated, o)
}

// Edit handles PUT /v1/orders/:id.  Items are replaced wholesale.
func (h *OrderHandler) Edit(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req service.OrderInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Edit(ctx, tenantID, id, req)
	if err != nil {
		return fail(c, err, "edit order failed")
	}
	return c.JSON(http.StatusOK, o)
}

// Serve handles POST /v1/orders/:id/served.
func (h *OrderHandler) Serve(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.MarkServed(ctx, tenantID, id)
	if err != nil {
		return fail(c, err, "mark served failed")
	}
	return c.JSON(http.StatusOK, o)
}

// Pay handles POST /v1/orders/:id/paid.
func (h *OrderHandler) Pay(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.MarkPaid(ctx, tenantID, id)
	if err != nil {
		return fail(c, err, "mark paid failed")
	}
	return c.JSON(http.StatusOK, o)
}

// Delete handles DELETE /v1/orders/:id.  Stock is restored and the
// table freed; paid orders answer 409.
func (h *OrderHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Orders.Delete(ctx, tenantID, id); err != nil {
		return fail(c, err, "delete order failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Unserved handles GET /v1/orders/unserved (kitchen queue).
func (h *OrderHandler) Unserved(c echo.Context) error {
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Orders.Unserved(ctx, tenantID)
	if err != nil {
		return fail(c, err, "list failed")
	}
	return c.JSON(http.StatusOK, list)
}

// Unpaid handles GET /v1/orders/unpaid.
func (h *OrderHandler) Unpaid(c echo.Context) error {
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Orders.Unpaid(ctx, tenantID)
	if err != nil {
		return fail(c, err, "list failed")
	}
	return c.JSON(http.StatusOK, list)
}

// Paid handles GET /v1/orders/paid?from=YYYY-MM-DD&to=YYYY-MM-DD and
// returns the paid orders grouped by calendar day.  Both dates default
// to today.
func (h *OrderHandler) Paid(c echo.Context) error {
	from, to, err := dateRange(c, h.Loc)
	if err != nil {
		return badRequest(c, err.Error())
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	days, err := h.Orders.PaidByDay(ctx, tenantID, from, to)
	if err != nil {
		return fail(c, err, "list failed")
	}
	return c.JSON(http.StatusOK, days)
}

// Detail handles GET /v1/orders/:id.
func (h *OrderHandler) Detail(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	d, err := h.Orders.Detail(ctx, tenantID, id)
	if err != nil {
		return fail(c, err, "load order failed")
	}
	return c.JSON(http.StatusOK, d)
}

// Receipt handles GET /v1/orders/:id/receipt and answers printable HTML.
func (h *OrderHandler) Receipt(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	d, err := h.Orders.Detail(ctx, tenantID, id)
	if err != nil {
		return fail(c, err, "load order failed")
	}
	var buf bytes.Buffer
	if err := h.Receipts.Render(&buf, d); err != nil {
		return fail(c, err, "render receipt failed")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// dateRange reads the from/to query dates in loc.  Missing dates are
// zero, which the services read as today.
func dateRange(c echo.Context, loc *time.Location) (from, to time.Time, err error) {
	parse := func(name string) (time.Time, error) {
		v := c.QueryParam(name)
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.ParseInLocation(service.DayLayout, v, loc)
		if err != nil {
			return time.Time{}, errors.New(name + " must be YYYY-MM-DD")
		}
		return t, nil
	}
	if from, err = parse("from"); err != nil {
		return
	}
	to, err = parse("to")
	return
}
