package model

import "github.com/shopspring/decimal"

// Category groups meals of a tenant.  Categories are hard deleted, and
// only when no meal references them.
type Category struct {
	ID          uint64 `json:"id"`          // categories.id
	TenantID    uint64 `json:"tenant_id"`   // categories.tenant_id
	Name        string `json:"name"`        // categories.name
	Description string `json:"description"` // categories.description
}

// Meal is a sellable item.  Quantity is the remaining stock: placing an
// order decrements it, deleting or shrinking an order gives it back.
// Disabled meals are soft deleted and excluded from listings but stay
// referenced by historical order items.
type Meal struct {
	ID            uint64          `json:"id"`              // meals.id
	TenantID      uint64          `json:"tenant_id"`       // meals.tenant_id
	CategoryID    uint64          `json:"category_id"`     // meals.category_id
	Name          string          `json:"name"`            // meals.name
	Price         decimal.Decimal `json:"price"`           // meals.price DECIMAL(10,2)
	Quantity      int             `json:"quantity"`        // meals.quantity
	ImageURL      string          `json:"image_url"`       // meals.image_url
	ImagePublicID string          `json:"image_public_id"` // meals.image_public_id
	Disabled      bool            `json:"-"`               // meals.disabled
}

// InStock reports whether at least one unit is left.
func (m Meal) InStock() bool { return m.Quantity > 0 }

// MealView is the JSON shape returned to clients; it adds the derived
// in_stock flag.
type MealView struct {
	Meal
	InStock bool `json:"in_stock"`
}

// View wraps m with its derived fields.
func (m Meal) View() MealView { return MealView{Meal: m, InStock: m.InStock()} }
