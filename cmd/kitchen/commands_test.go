package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/pkg/client"
)

func kitchenAPI(t *testing.T) *client.Client {
	t.Helper()
	e := echo.New()
	e.POST("/v1/auth/login", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"access": echo.Map{"token": "tok"}, "refresh": echo.Map{"token": "r"}})
	})
	e.GET("/v1/orders/unserved", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []model.Order{{ID: 1, ToGo: true}, {ID: 2}})
	})
	e.POST("/v1/orders/:id/served", func(c echo.Context) error {
		if c.Param("id") == "2" {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusOK, model.Order{ID: 1, Served: true})
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, nil)
	_, err := c.Login(context.Background(), "cook@example.com", "pw")
	require.NoError(t, err)
	return c
}

func TestBoardServeOptimistic(t *testing.T) {
	var out bytes.Buffer
	b := &board{client: kitchenAPI(t), orders: newOrders(), out: &out}
	ctx := context.Background()
	require.NoError(t, b.refetch(ctx))
	require.Equal(t, 2, b.orders.Len())

	require.NoError(t, b.serve(ctx, 1))
	_, ok := b.orders.Get(1)
	assert.False(t, ok)

	err := b.serve(ctx, 2)
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
	_, ok = b.orders.Get(2)
	assert.True(t, ok, "refused serve is reverted")
}

func TestReadCommands(t *testing.T) {
	var out bytes.Buffer
	b := &board{client: kitchenAPI(t), orders: newOrders(), out: &out}
	ctx := context.Background()
	require.NoError(t, b.refetch(ctx))

	b.readCommands(ctx, bytes.NewBufferString("#1\nsoup\n\n"))
	assert.Equal(t, 1, b.orders.Len())
	assert.Contains(t, out.String(), `not an order id: "soup"`)
}

func TestRender(t *testing.T) {
	table := uint64(4)
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	var out bytes.Buffer
	render(&out, []model.Order{
		{ID: 7, TableID: &table, CreatedAt: at, Items: []model.OrderItem{{MealID: 3, Quantity: 2}}},
		{ID: 8, ToGo: true, CreatedAt: at},
	})
	assert.Contains(t, out.String(), "== 2 to serve ==")
	assert.Contains(t, out.String(), "table id 4")
	assert.Contains(t, out.String(), "2x meal 3")
	assert.Contains(t, out.String(), "to go")
}

func TestReconnectDelay(t *testing.T) {
	refused := &client.APIError{Status: http.StatusUnauthorized}
	lost := fmt.Errorf("%w: %v", client.ErrFeedLost, io.ErrUnexpectedEOF)

	d := reconnectDelay(0, refused)
	assert.Equal(t, minBackoff, d)
	for i := 0; i < 10; i++ {
		d = reconnectDelay(d, refused)
	}
	assert.Equal(t, maxBackoff, d)

	assert.Equal(t, minBackoff, reconnectDelay(d, lost), "an accepted feed starts over")
	assert.Equal(t, 2*time.Second, reconnectDelay(minBackoff, refused))
}

func TestBoardOutputIsSerialized(t *testing.T) {
	var out bytes.Buffer
	b := &board{client: kitchenAPI(t), orders: newOrders(), out: &out}
	b.orders.Subscribe(b.show)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.readCommands(ctx, strings.NewReader(strings.Repeat("soup\n", 50)))
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			b.orders.Replace([]model.Order{{ID: uint64(i + 1), ToGo: true}})
		}
	}()
	wg.Wait()

	assert.Equal(t, 50, strings.Count(out.String(), `not an order id: "soup"`))
	assert.Equal(t, 50, strings.Count(out.String(), "== 1 to serve =="))
}
