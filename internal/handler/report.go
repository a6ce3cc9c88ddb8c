package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/service"
)

// ReportHandler serves the sales report and the plan pages.
type ReportHandler struct {
	Reports *service.ReportService
	Plans   *service.PlanService
}

func NewReportHandler(reports *service.ReportService, plans *service.PlanService) *ReportHandler {
	return &ReportHandler{Reports: reports, Plans: plans}
}

// Sales handles GET /v1/reports/sales?from=&to=.
func (h *ReportHandler) Sales(c echo.Context) error {
	from, to, err := dateRange(c, h.Reports.Location())
	if err != nil {
		return badRequest(c, err.Error())
	}
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reports.Report(ctx, tenantID, from, to)
	if err != nil {
		return fail(c, err, "report failed")
	}
	return c.JSON(http.StatusOK, r)
}

// PlanOverview handles GET /v1/plans.
func (h *ReportHandler) PlanOverview(c echo.Context) error {
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	ov, err := h.Plans.Overview(ctx, tenantID)
	if err != nil {
		return fail(c, err, "load plans failed")
	}
	return c.JSON(http.StatusOK, ov)
}

// PlanInquiry handles GET /v1/plans/:plan/inquiry and returns the
// messaging deep link.
func (h *ReportHandler) PlanInquiry(c echo.Context) error {
	tenantID, _ := tenant(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	link, err := h.Plans.InquiryLink(ctx, tenantID, model.Plan(c.Param("plan")))
	if err != nil {
		return fail(c, err, "build link failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"url": link})
}
