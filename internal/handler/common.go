package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/middleware"
	"github.com/iliyamo/restaurant-orders/internal/repository"
	"github.com/iliyamo/restaurant-orders/internal/service"
)

// requestTimeout bounds the store work of one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// paramID parses a positive uint64 path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// tenant returns the authenticated tenant and account ids.
func tenant(c echo.Context) (tenantID, accountID uint64) {
	return middleware.TenantID(c), middleware.AccountID(c)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// statusOf maps a service or repository error to its HTTP status and the
// message shown to the client.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrPlanLimit),
		errors.Is(err, service.ErrAccountDisabled),
		errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrDailyOrderLimit):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrMealUnavailable),
		errors.Is(err, service.ErrTableOccupied),
		errors.Is(err, service.ErrTableUnavailable),
		errors.Is(err, service.ErrTableInUse),
		errors.Is(err, service.ErrCategoryInUse),
		errors.Is(err, service.ErrOrderSettled),
		errors.Is(err, service.ErrSelfDisable),
		errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	}
	return http.StatusInternalServerError, ""
}

// fail writes err as a JSON error.  Unmapped errors are logged and
// answered with fallback so internals do not leak.
func fail(c echo.Context, err error, fallback string) error {
	status, msg := statusOf(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		msg = fallback
	}
	return c.JSON(status, echo.Map{"error": msg})
}
