package service

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"strings"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
	"github.com/iliyamo/restaurant-orders/internal/utils"
)

// AuthConfig holds token lifetimes and hashing cost.
type AuthConfig struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Session is what a successful sign-up, login or refresh hands back.
type Session struct {
	Account model.Account
	Tenant  model.Tenant
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Profile is the identity behind an access token resolved to its
// tenant-scoped account.
type Profile struct {
	Account model.Account `json:"account"`
	Tenant  model.Tenant  `json:"tenant"`
}

// AuthService signs tenants up and issues access/refresh token pairs.
type AuthService struct {
	cfg      AuthConfig
	tx       Transactor
	tenants  TenantStore
	accounts AccountStore
	tokens   TokenStore
	bus      Notifier
}

func NewAuthService(cfg AuthConfig, s Stores, bus Notifier) *AuthService {
	return &AuthService{cfg: cfg, tx: s.Tx, tenants: s.Tenants, accounts: s.Accounts, tokens: s.Tokens, bus: orNopNotifier(bus)}
}

// SignUpInput creates a tenant and its first admin.
type SignUpInput struct {
	Restaurant string `json:"restaurant"`
	Logo       string `json:"logo"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

const minPasswordLen = 8

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return invalid("email/password required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email is not valid")
	}
	if len(password) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	if len(password) > utils.MaxPasswordBytes {
		return invalid("password must be at most %d bytes", utils.MaxPasswordBytes)
	}
	return nil
}

// SignUp creates the tenant and its admin account in one transaction and
// logs the admin in.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	in.Email = repository.NormalizeEmail(in.Email)
	in.Restaurant = strings.TrimSpace(in.Restaurant)
	in.Name = strings.TrimSpace(in.Name)
	if in.Restaurant == "" {
		return Session{}, invalid("restaurant name required")
	}
	if in.Name == "" {
		return Session{}, invalid("name required")
	}
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return Session{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return Session{}, err
	}

	tenant := model.Tenant{Name: in.Restaurant, Logo: in.Logo, Plan: model.PlanFree}
	account := model.Account{Name: in.Name, Email: in.Email, PasswordHash: hash, Role: model.RoleAdmin}
	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.tenants.CreateTx(ctx, tx, &tenant); err != nil {
			return err
		}
		account.TenantID = tenant.ID
		return s.accounts.CreateTx(ctx, tx, &account)
	})
	if err != nil {
		return Session{}, err
	}
	emit(s.bus, model.EntityAccount, events.ActionInsert, tenant.ID, account.ID)
	return s.issue(ctx, account, tenant)
}

// Login verifies credentials and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, invalid("email/password required")
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !utils.VerifyPassword(a.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	if !a.Enabled {
		return Session{}, ErrAccountDisabled
	}
	t, err := s.tenants.GetByID(ctx, a.TenantID)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, a, t)
}

// Refresh consumes raw and issues a new pair.  A refresh token works
// once; replaying it is ErrInvalidCredentials.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	id, err := s.tokens.Consume(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw)))
	if err != nil {
		return Session{}, credentialErr(err)
	}
	a, err := s.enabledAccount(ctx, id)
	if err != nil {
		return Session{}, err
	}
	t, err := s.tenants.GetByID(ctx, a.TenantID)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, a, t)
}

// RefreshAccess returns a new access token without rotating raw.
func (s *AuthService) RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, error) {
	a, err := s.refreshAccount(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw)))
	if err != nil {
		return utils.AccessToken{}, err
	}
	return utils.NewAccessToken(s.cfg.Secret, a.ID, a.TenantID, string(a.Role), s.cfg.AccessTTLMin)
}

func (s *AuthService) refreshAccount(ctx context.Context, hash string) (model.Account, error) {
	id, err := s.tokens.Lookup(ctx, hash)
	if err != nil {
		return model.Account{}, credentialErr(err)
	}
	return s.enabledAccount(ctx, id)
}

func (s *AuthService) enabledAccount(ctx context.Context, id uint64) (model.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, credentialErr(err)
	}
	if !a.Enabled {
		return model.Account{}, ErrAccountDisabled
	}
	return a, nil
}

// credentialErr turns a missing token or account into
// ErrInvalidCredentials.
func credentialErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidCredentials
	}
	return err
}

// LogoutAll revokes every refresh token of an account.
func (s *AuthService) LogoutAll(ctx context.Context, accountID uint64) error {
	return s.tokens.RevokeAccount(ctx, accountID)
}

// Logout revokes a single refresh token.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return credentialErr(s.tokens.Revoke(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw))))
}

// Profile resolves an authenticated account to its tenant-scoped
// profile.  Disabled accounts resolve to ErrAccountDisabled.
func (s *AuthService) Profile(ctx context.Context, tenantID, accountID uint64) (Profile, error) {
	a, err := s.accounts.GetForTenant(ctx, tenantID, accountID)
	if err != nil {
		return Profile{}, err
	}
	if !a.Enabled {
		return Profile{}, ErrAccountDisabled
	}
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Account: a, Tenant: t}, nil
}

// UpdateBranding changes the tenant name and logo used on receipts.
func (s *AuthService) UpdateBranding(ctx context.Context, tenantID uint64, name, logo string) (model.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Tenant{}, invalid("restaurant name required")
	}
	if err := s.tenants.UpdateBranding(ctx, tenantID, name, strings.TrimSpace(logo)); err != nil {
		return model.Tenant{}, err
	}
	return s.tenants.GetByID(ctx, tenantID)
}

func (s *AuthService) issue(ctx context.Context, a model.Account, t model.Tenant) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.Secret, a.ID, a.TenantID, string(a.Role), s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.Store(ctx, a.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{Account: a, Tenant: t, Access: access, Refresh: refresh}, nil
}
