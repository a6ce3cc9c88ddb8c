package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/realtime"
)

// RealtimeHandler upgrades to the change feed.
type RealtimeHandler struct {
	Hub *realtime.Hub
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{Hub: hub}
}

// Stream handles GET /v1/realtime?topics=orders,meals.  The connection
// is hijacked, so nothing is written through echo after the upgrade.
func (h *RealtimeHandler) Stream(c echo.Context) error {
	topics, err := realtime.ParseTopics(c.QueryParam("topics"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	tenantID, _ := tenant(c)
	if err := h.Hub.Serve(c.Response(), c.Request(), tenantID, topics); err != nil {
		c.Logger().Warnf("realtime: upgrade failed: %v", err)
	}
	return nil
}
