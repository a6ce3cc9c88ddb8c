package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderState(t *testing.T) {
	assert.Equal(t, StatePlaced, Order{}.State())
	assert.Equal(t, StateServed, Order{Served: true}.State())
	assert.Equal(t, StatePaid, Order{Paid: true}.State())
	assert.Equal(t, StatePaid, Order{Served: true, Paid: true}.State())
}

func TestItemTotal(t *testing.T) {
	items := []OrderItem{
		{MealID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("20.00")},
		{MealID: 2, Quantity: 3, UnitPrice: decimal.RequireFromString("1.50")},
	}
	assert.True(t, decimal.RequireFromString("44.50").Equal(ItemTotal(items)))
	assert.True(t, ItemTotal(nil).IsZero())
}

func TestQuantitiesMergesDuplicates(t *testing.T) {
	q := Quantities([]OrderItem{{MealID: 1, Quantity: 2}, {MealID: 1, Quantity: 1}, {MealID: 4, Quantity: 5}})
	assert.Equal(t, map[uint64]int{1: 3, 4: 5}, q)
}

func TestPlanLimits(t *testing.T) {
	free := PlanFree.Limits()
	assert.Equal(t, 5, free.MaxCategories)
	assert.True(t, Reached(5, free.MaxCategories))
	assert.False(t, Reached(4, free.MaxCategories))
	assert.False(t, Reached(1_000_000, PlanPremium.Limits().MaxUsers))
	assert.Equal(t, free, Plan("gold").Limits())
	assert.False(t, Plan("gold").Valid())
}

func TestDeletionPolicies(t *testing.T) {
	assert.Equal(t, HardDelete, EntityCategory.Policy())
	assert.Equal(t, SoftDelete, EntityMeal.Policy())
	assert.Equal(t, "disabled = 0", EntityTable.ListFilter())
	assert.Equal(t, "enabled = 1", EntityAccount.ListFilter())
	assert.Equal(t, "1 = 1", EntityCategory.ListFilter())
	assert.Equal(t, "disabled = 1", EntityMeal.SoftDeleteAssignment())
	assert.Equal(t, "enabled = 0", EntityAccount.SoftDeleteAssignment())
	assert.Equal(t, "", EntityOrder.SoftDeleteAssignment())
}

func TestMealInStock(t *testing.T) {
	assert.False(t, Meal{Quantity: 0}.InStock())
	assert.True(t, Meal{Quantity: 1}.View().InStock)
}
