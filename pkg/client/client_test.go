package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
)

// fakeAPI answers the handful of routes the client uses.  The first
// access token it hands out is rejected once to exercise the refresh.
func fakeAPI(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	refreshes := 0
	e := echo.New()
	e.POST("/v1/auth/login", func(c echo.Context) error {
		var req map[string]string
		_ = c.Bind(&req)
		if req["password"] != "secret" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"user":    model.Account{ID: 3, TenantID: 7, Role: model.RoleCook},
			"access":  echo.Map{"token": "stale"},
			"refresh": echo.Map{"token": "r1"},
		})
	})
	e.POST("/v1/auth/refresh-access", func(c echo.Context) error {
		refreshes++
		return c.JSON(http.StatusOK, echo.Map{"access": echo.Map{"token": "fresh"}})
	})
	e.GET("/v1/orders/unserved", func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Bearer fresh" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		return c.JSON(http.StatusOK, []model.Order{{ID: 1}, {ID: 2}})
	})
	e.POST("/v1/orders/:id/served", func(c echo.Context) error {
		if c.Param("id") == "9" {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusOK, model.Order{ID: 1, Served: true})
	})
	upgrader := websocket.Upgrader{}
	e.GET("/v1/realtime", func(c echo.Context) error {
		topics := c.QueryParam("topics")
		if topics != "orders" && topics != "drop" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad topics"})
		}
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return nil
		}
		defer conn.Close()
		_ = conn.WriteJSON(events.Event{Topic: "orders", Action: events.ActionInsert, TenantID: 7, ID: 11})
		if topics == "drop" {
			return nil
		}
		// hold the connection until the client hangs up
		_, _, _ = conn.ReadMessage()
		return nil
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, &refreshes
}

func TestLoginAndRefreshOn401(t *testing.T) {
	srv, refreshes := fakeAPI(t)
	c := New(srv.URL, nil)
	ctx := context.Background()

	_, err := c.Unserved(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = c.Login(ctx, "cook@example.com", "wrong")
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	acc, err := c.Login(ctx, "cook@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCook, acc.Role)

	orders, err := c.Unserved(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, 1, *refreshes)
	assert.Equal(t, "fresh", c.AccessToken())
}

func TestMarkServedErrors(t *testing.T) {
	srv, _ := fakeAPI(t)
	c := New(srv.URL, nil)
	_, err := c.Login(context.Background(), "cook@example.com", "secret")
	require.NoError(t, err)

	o, err := c.MarkServed(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, o.Served)

	_, err = c.MarkServed(context.Background(), 9)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "not found", ae.Message)
}

func TestWatch(t *testing.T) {
	srv, _ := fakeAPI(t)
	c := New(srv.URL, nil)
	_, err := c.Login(context.Background(), "cook@example.com", "secret")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan events.Event, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- c.Watch(ctx, []string{"orders"}, func(e events.Event) {
			got <- e
			cancel()
		})
	}()

	select {
	case e := <-got:
		assert.Equal(t, uint64(11), e.ID)
		assert.Equal(t, events.ActionInsert, e.Action)
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	assert.NoError(t, <-errc)
}

func TestWatchRefused(t *testing.T) {
	srv, _ := fakeAPI(t)
	c := New(srv.URL, nil)
	_, err := c.Login(context.Background(), "cook@example.com", "secret")
	require.NoError(t, err)

	err = c.Watch(context.Background(), []string{"meals"}, func(events.Event) {})
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestWatchReportsLostFeed(t *testing.T) {
	srv, _ := fakeAPI(t)
	c := New(srv.URL, nil)
	_, err := c.Login(context.Background(), "cook@example.com", "secret")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n := 0
	err = c.Watch(ctx, []string{"drop"}, func(events.Event) { n++ })
	assert.ErrorIs(t, err, ErrFeedLost)
	assert.Equal(t, 1, n)

	err = c.Watch(ctx, []string{"meals"}, func(events.Event) {})
	assert.NotErrorIs(t, err, ErrFeedLost)
}
