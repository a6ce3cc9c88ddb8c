package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState is the lifecycle position of an order derived from its
// served and paid flags.  Paid is terminal and does not require served:
// kitchen and cashier confirmations are independent.
type OrderState string

const (
	StatePlaced OrderState = "placed"
	StateServed OrderState = "served"
	StatePaid   OrderState = "paid"
)

// Order is a set of line items placed by an account, either for a table
// or to go.  Total is fixed when the order is placed or edited and is
// never recomputed from later catalog prices.
//
// Fields:
//   - ID           – primary key identifier.
//   - TenantID     – owning tenant.
//   - TableID      – table the order occupies (nil when to go).
//   - UserID       – account that placed the order.
//   - CustomerName – optional customer reference.
//   - ToGo         – true when the order is not bound to a table.
//   - Served       – kitchen-side completion flag.
//   - Paid         – cashier-side settlement flag (terminal).
//   - Total        – Σ quantity × unit price at placement/edit time.
//   - CreatedAt    – creation timestamp (UTC).
//   - UpdatedAt    – last update timestamp (UTC).
//   - Items        – line items, loaded on demand.
type Order struct {
	ID           uint64          `json:"id"`            // orders.id
	TenantID     uint64          `json:"tenant_id"`     // orders.tenant_id
	TableID      *uint64         `json:"table_id"`      // orders.table_id (nullable)
	UserID       uint64          `json:"user_id"`       // orders.user_id
	CustomerName *string         `json:"customer_name"` // orders.customer_name (nullable)
	ToGo         bool            `json:"to_go"`         // orders.to_go
	Served       bool            `json:"served"`        // orders.served
	Paid         bool            `json:"paid"`          // orders.paid
	Total        decimal.Decimal `json:"total"`         // orders.total DECIMAL(12,2)
	CreatedAt    time.Time       `json:"created_at"`    // orders.created_at
	UpdatedAt    time.Time       `json:"updated_at"`    // orders.updated_at
	Items        []OrderItem     `json:"items"`
}

// State derives the lifecycle state from the flags.
func (o Order) State() OrderState {
	switch {
	case o.Paid:
		return StatePaid
	case o.Served:
		return StateServed
	default:
		return StatePlaced
	}
}

// OrderItem is one line of an order.  Quantity and UnitPrice are
// snapshots taken when the line was written; they do not follow the
// meal's live stock or price.
type OrderItem struct {
	OrderID   uint64          `json:"order_id"`   // order_items.order_id
	MealID    uint64          `json:"meal_id"`    // order_items.meal_id
	Quantity  int             `json:"quantity"`   // order_items.quantity
	UnitPrice decimal.Decimal `json:"unit_price"` // order_items.unit_price
}

// LineTotal is UnitPrice × Quantity.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// ItemTotal sums the line totals of items.
func ItemTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Quantities folds items into meal id → summed quantity.
func Quantities(items []OrderItem) map[uint64]int {
	out := make(map[uint64]int, len(items))
	for _, it := range items {
		out[it.MealID] += it.Quantity
	}
	return out
}

// OrderDetail is an order joined with what the receipt and detail
// screens need: meal names, the placing user, the table number and the
// tenant's branding.
type OrderDetail struct {
	Order
	UserName    string            `json:"user_name"`
	TableNumber *int              `json:"table_number"`
	Tenant      Tenant            `json:"tenant"`
	Lines       []OrderDetailLine `json:"lines"`
}

// OrderDetailLine is an OrderItem with its meal name resolved.
type OrderDetailLine struct {
	OrderItem
	MealName  string          `json:"meal_name"`
	LineTotal decimal.Decimal `json:"line_total"`
}
