package model

// Plan is a subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// Unlimited marks a limit that is never reached.
const Unlimited = -1

// PlanLimits caps counts per tenant.  A value of Unlimited disables
// the corresponding check.
type PlanLimits struct {
	MaxUsers       int `json:"max_users"`
	MaxCategories  int `json:"max_categories"`
	MaxDailyOrders int `json:"max_daily_orders"`
}

var planLimits = map[Plan]PlanLimits{
	PlanFree:    {MaxUsers: 3, MaxCategories: 5, MaxDailyOrders: 50},
	PlanBasic:   {MaxUsers: 10, MaxCategories: 25, MaxDailyOrders: 500},
	PlanPremium: {MaxUsers: Unlimited, MaxCategories: Unlimited, MaxDailyOrders: Unlimited},
}

// Plans lists the known plans in upgrade order.
func Plans() []Plan { return []Plan{PlanFree, PlanBasic, PlanPremium} }

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}

// Limits returns the static limits of p.  Unknown plans get the free
// tier's limits.
func (p Plan) Limits() PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Reached reports whether count is at or above limit.
func Reached(count, limit int) bool {
	return limit != Unlimited && count >= limit
}
