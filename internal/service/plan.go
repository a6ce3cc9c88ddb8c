package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
)

// PlanInfo is one row of the plan table.
type PlanInfo struct {
	Plan    model.Plan       `json:"plan"`
	Limits  model.PlanLimits `json:"limits"`
	Current bool             `json:"current"`
}

// PlanOverview is the plan table plus the tenant's live usage.
type PlanOverview struct {
	Current model.Plan       `json:"current"`
	Usage   repository.Usage `json:"usage"`
	Plans   []PlanInfo       `json:"plans"`
}

// PlanService exposes the static plan table and the purchase inquiry
// hand-off.
type PlanService struct {
	tenants TenantStore
	phone   string
	loc     *time.Location
	now     func() time.Time
}

// NewPlanService wires a PlanService.  phone is the messaging number
// inquiries are addressed to.
func NewPlanService(s Stores, phone string, loc *time.Location) *PlanService {
	if loc == nil {
		loc = time.UTC
	}
	return &PlanService{tenants: s.Tenants, phone: phone, loc: loc, now: time.Now}
}

func (s *PlanService) Overview(ctx context.Context, tenantID uint64) (PlanOverview, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return PlanOverview{}, err
	}
	u, err := s.tenants.Usage(ctx, tenantID, startOfDay(s.now(), s.loc))
	if err != nil {
		return PlanOverview{}, err
	}
	ov := PlanOverview{Current: t.Plan, Usage: u}
	for _, p := range model.Plans() {
		ov.Plans = append(ov.Plans, PlanInfo{Plan: p, Limits: p.Limits(), Current: p == t.Plan})
	}
	return ov, nil
}

// InquiryLink builds a wa.me deep link prefilled with a purchase inquiry
// for plan.  Nothing is read back.
func (s *PlanService) InquiryLink(ctx context.Context, tenantID uint64, plan model.Plan) (string, error) {
	if !plan.Valid() {
		return "", invalid("unknown plan %q", plan)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s.phone)
	if digits == "" {
		return "", invalid("plan inquiries are not configured")
	}
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Hello, I would like to move %s (account #%d) from the %s plan to the %s plan.", t.Name, t.ID, t.Plan, plan)
	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20"), nil
}
