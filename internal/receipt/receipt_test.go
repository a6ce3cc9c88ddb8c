package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

func detail() model.OrderDetail {
	price := decimal.RequireFromString("12.5")
	num := 7
	return model.OrderDetail{
		Order: model.Order{
			ID:        42,
			Total:     decimal.RequireFromString("25"),
			CreatedAt: time.Date(2024, 5, 1, 18, 5, 0, 0, time.UTC),
		},
		UserName:    "Sam",
		TableNumber: &num,
		Tenant:      model.Tenant{Name: "Bistro <&>", Logo: "https://logo.example/b.png"},
		Lines: []model.OrderDetailLine{{
			OrderItem: model.OrderItem{MealID: 1, Quantity: 2, UnitPrice: price},
			MealName:  "Pizza",
			LineTotal: decimal.RequireFromString("25"),
		}},
	}
}

func TestRender(t *testing.T) {
	var b strings.Builder
	require.NoError(t, New(time.FixedZone("UTC+2", 7200)).Render(&b, detail()))
	out := b.String()

	assert.Contains(t, out, "Bistro &lt;&amp;&gt;")
	assert.Contains(t, out, `src="https://logo.example/b.png"`)
	assert.Contains(t, out, "Order #42 &middot; 2024-05-01 20:05")
	assert.Contains(t, out, "Table 7")
	assert.Contains(t, out, "Served by Sam")
	assert.Contains(t, out, "<td>Pizza</td><td class=\"n\">2</td><td class=\"n\">12.50</td><td class=\"n\">25.00</td>")
	assert.Contains(t, out, "UNPAID")
}

func TestRenderToGo(t *testing.T) {
	d := detail()
	d.ToGo, d.TableNumber, d.Paid = true, nil, true
	name := "Kim"
	d.CustomerName = &name
	d.Tenant.Logo = ""

	var b strings.Builder
	require.NoError(t, New(nil).Render(&b, d))
	out := b.String()
	assert.Contains(t, out, "To go &middot; Kim")
	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, "PAID")
	assert.NotContains(t, out, "Table")
}
