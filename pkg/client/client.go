// Package client is a typed Go client for the restaurant API.  It keeps
// the session tokens, refreshes the access token once when a call is
// rejected with 401, and follows the realtime change feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// ErrNotLoggedIn is returned by calls made before Login.
var ErrNotLoggedIn = errors.New("client: not logged in")

// Client talks to one server.  It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	access  string
	refresh string
	account model.Account
}

// New returns a client for baseURL (e.g. http://localhost:8080).  A nil
// httpClient gets a 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type token struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type session struct {
	User    model.Account `json:"user"`
	Tenant  model.Tenant  `json:"tenant"`
	Access  token         `json:"access"`
	Refresh token         `json:"refresh"`
}

// Login opens a session and returns the signed-in account.
func (c *Client) Login(ctx context.Context, email, password string) (model.Account, error) {
	var s session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", body, &s, false); err != nil {
		return model.Account{}, err
	}
	c.mu.Lock()
	c.access, c.refresh, c.account = s.Access.Token, s.Refresh.Token, s.User
	c.mu.Unlock()
	return s.User, nil
}

// Logout revokes the refresh token and forgets the session.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refresh
	c.mu.Unlock()
	if refresh == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/v1/auth/logout", map[string]string{"refresh_token": refresh}, nil, false)
	c.mu.Lock()
	c.access, c.refresh = "", ""
	c.mu.Unlock()
	return err
}

// AccessToken returns the current access token.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

// OrderItem is one requested line of an order.
type OrderItem struct {
	MealID   uint64 `json:"meal_id"`
	Quantity int    `json:"quantity"`
}

// OrderRequest places or edits an order.
type OrderRequest struct {
	TableID      *uint64     `json:"table_id,omitempty"`
	ToGo         bool        `json:"to_go"`
	CustomerName *string     `json:"customer_name,omitempty"`
	Items        []OrderItem `json:"items"`
}

// Unserved lists the kitchen queue.
func (c *Client) Unserved(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := c.do(ctx, http.MethodGet, "/v1/orders/unserved", nil, &out, true)
	return out, err
}

// Unpaid lists orders waiting for payment.
func (c *Client) Unpaid(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := c.do(ctx, http.MethodGet, "/v1/orders/unpaid", nil, &out, true)
	return out, err
}

// PlaceOrder submits a new order.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (model.Order, error) {
	var o model.Order
	err := c.do(ctx, http.MethodPost, "/v1/orders", req, &o, true)
	return o, err
}

// MarkServed flags an order as served.
func (c *Client) MarkServed(ctx context.Context, id uint64) (model.Order, error) {
	var o model.Order
	err := c.do(ctx, http.MethodPost, "/v1/orders/"+strconv.FormatUint(id, 10)+"/served", nil, &o, true)
	return o, err
}

// MarkPaid settles an order and frees its table.
func (c *Client) MarkPaid(ctx context.Context, id uint64) (model.Order, error) {
	var o model.Order
	err := c.do(ctx, http.MethodPost, "/v1/orders/"+strconv.FormatUint(id, 10)+"/paid", nil, &o, true)
	return o, err
}

// refreshAccess trades the refresh token for a new access token.
func (c *Client) refreshAccess(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refresh
	c.mu.Unlock()
	if refresh == "" {
		return ErrNotLoggedIn
	}
	var out struct {
		Access token `json:"access"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/refresh-access", map[string]string{"refresh_token": refresh}, &out, false); err != nil {
		return err
	}
	c.mu.Lock()
	c.access = out.Access.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	err := c.send(ctx, method, path, in, out, authed)
	if authed && IsStatus(err, http.StatusUnauthorized) {
		if rerr := c.refreshAccess(ctx); rerr != nil {
			return err
		}
		err = c.send(ctx, method, path, in, out, authed)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		tok := c.AccessToken()
		if tok == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
