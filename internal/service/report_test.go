package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

func paidOrder(tenantID uint64, at time.Time, items ...model.OrderItem) model.Order {
	return model.Order{TenantID: tenantID, Paid: true, Served: true, ToGo: true, CreatedAt: at, Items: items, Total: model.ItemTotal(items)}
}

func TestBuildReportBuckets(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	orders := []model.Order{
		paidOrder(1, day.Add(9*time.Hour+15*time.Minute), model.OrderItem{MealID: 1, Quantity: 2, UnitPrice: dec("10.50")}),
		paidOrder(1, day.Add(9*time.Hour+59*time.Minute), model.OrderItem{MealID: 2, Quantity: 1, UnitPrice: dec("4")}),
		paidOrder(1, day.Add(23*time.Hour), model.OrderItem{MealID: 1, Quantity: 1, UnitPrice: dec("3.25")}),
		paidOrder(1, day.Add(24*time.Hour+time.Hour), model.OrderItem{MealID: 1, Quantity: 3, UnitPrice: dec("1")}),
	}
	r := BuildReport(orders, time.UTC)

	require.Len(t, r.Buckets, BucketCount)
	assert.Equal(t, 8, r.Buckets[4].StartHour)
	assert.Equal(t, "25", r.Buckets[4].Total.String())
	assert.Equal(t, 2, r.Buckets[4].Orders)
	assert.Equal(t, "3.25", r.Buckets[11].Total.String())
	assert.Equal(t, "3", r.Buckets[0].Total.String())
	assert.True(t, r.Buckets[5].Total.IsZero())

	assert.Equal(t, "28.25", r.Days["2024-05-01"].String())
	assert.Equal(t, "3", r.Days["2024-05-02"].String())
	assert.Equal(t, "31.25", r.Total.String())
	assert.Equal(t, 4, r.Count)
}

func TestBuildReportUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	at := time.Date(2024, 5, 1, 22, 30, 0, 0, time.UTC)
	r := BuildReport([]model.Order{paidOrder(1, at, model.OrderItem{Quantity: 1, UnitPrice: dec("5")})}, loc)

	assert.Equal(t, 1, r.Buckets[0].Orders)
	assert.Contains(t, r.Days, "2024-05-02")
}

func TestBuildReportEmpty(t *testing.T) {
	r := BuildReport(nil, nil)
	assert.Len(t, r.Buckets, BucketCount)
	assert.Empty(t, r.Days)
	assert.True(t, r.Total.IsZero())
}

func TestReportServiceDefaultsToToday(t *testing.T) {
	db := newMemDB()
	tenant := db.addTenant(model.PlanFree)
	now := time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)
	db.orders[1] = paidOrder(tenant.ID, now.Add(-time.Hour), model.OrderItem{Quantity: 2, UnitPrice: dec("5")})
	db.orders[2] = paidOrder(tenant.ID, now.Add(-24*time.Hour), model.OrderItem{Quantity: 1, UnitPrice: dec("7")})
	unpaid := paidOrder(tenant.ID, now.Add(-time.Hour), model.OrderItem{Quantity: 1, UnitPrice: dec("100")})
	unpaid.Paid = false
	db.orders[3] = unpaid

	svc := NewReportService(db.stores(), time.UTC)
	svc.now = func() time.Time { return now }

	r, err := svc.Report(context.Background(), tenant.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", r.From)
	assert.Equal(t, "2024-05-02", r.To)
	assert.Equal(t, "10", r.Total.String())
	assert.Equal(t, 1, r.Count)

	r, err = svc.Report(context.Background(), tenant.ID, now.AddDate(0, 0, -1), now)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", r.From)
	assert.Equal(t, "17", r.Total.String())
}
