package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-orders/internal/middleware"
	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/service"
	"github.com/iliyamo/restaurant-orders/internal/utils"
)

// AuthHandler serves sign up, login and token rotation.
type AuthHandler struct {
	Auth   *service.AuthService
	Secret string
}

func NewAuthHandler(auth *service.AuthService, secret string) *AuthHandler {
	return &AuthHandler{Auth: auth, Secret: secret}
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}
type brandingBody struct {
	Name string `json:"name"`
	Logo string `json:"logo"`
}

type tokenBody struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type sessionBody struct {
	User    model.Account `json:"user"`
	Tenant  model.Tenant  `json:"tenant"`
	Access  tokenBody     `json:"access"`
	Refresh tokenBody     `json:"refresh"`
}

func sessionResp(s service.Session) sessionBody {
	return sessionBody{
		User:    s.Account,
		Tenant:  s.Tenant,
		Access:  tokenBody{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenBody{Token: s.Refresh.Raw, Expires: s.Refresh.Exp}, // raw back to client
	}
}

// SignUp: create the restaurant and its admin, return tokens immediately.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req service.SignUpInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.SignUp(ctx, req)
	if err != nil {
		return fail(c, err, "sign up failed")
	}
	return c.JSON(http.StatusCreated, sessionResp(s))
}

// Login returns a fresh token pair for valid credentials.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsBody
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err, "login failed")
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Refresh rotates the refresh token; a token can be spent once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshBody
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err, "refresh failed")
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// RefreshAccess: return a new access token WITHOUT rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshBody
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	access, err := h.Auth.RefreshAccess(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err, "refresh failed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenBody{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the caller when only a bearer access token is presented.
// The route is public so an expired access token does not block logout.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshBody
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if refreshToken != "" {
		if err := h.Auth.Logout(ctx, refreshToken); err != nil {
			return fail(c, err, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Secret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Auth.LogoutAll(ctx, claims.AccountID); err != nil {
		return fail(c, err, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account and tenant.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Auth.Profile(ctx, middleware.TenantID(c), middleware.AccountID(c))
	if err != nil {
		return fail(c, err, "load profile failed")
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateBranding handles PUT /v1/tenant (admin).
func (h *AuthHandler) UpdateBranding(c echo.Context) error {
	var req brandingBody
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Auth.UpdateBranding(ctx, middleware.TenantID(c), req.Name, req.Logo)
	if err != nil {
		return fail(c, err, "update failed")
	}
	return c.JSON(http.StatusOK, t)
}
