package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
	"github.com/iliyamo/restaurant-orders/internal/utils"
)

// AccountService manages a tenant's staff accounts.
type AccountService struct {
	tx       Transactor
	tenants  TenantStore
	accounts AccountStore
	tokens   TokenStore
	bus      Notifier
	cost     int
}

func NewAccountService(s Stores, bus Notifier, bcryptCost int) *AccountService {
	return &AccountService{tx: s.Tx, tenants: s.Tenants, accounts: s.Accounts, tokens: s.Tokens, bus: orNopNotifier(bus), cost: bcryptCost}
}

// AccountInput creates or updates an account.  Email and Password are
// ignored on update.
type AccountInput struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// List returns the tenant's enabled accounts.
func (s *AccountService) List(ctx context.Context, tenantID uint64) ([]model.Account, error) {
	return s.accounts.ListEnabled(ctx, tenantID)
}

// Create adds an account after checking the plan's user limit.  The
// tenant row is locked so concurrent creations see each other's count.
func (s *AccountService) Create(ctx context.Context, tenantID uint64, in AccountInput) (model.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = repository.NormalizeEmail(in.Email)
	if in.Name == "" {
		return model.Account{}, invalid("name required")
	}
	if !in.Role.Valid() {
		return model.Account{}, invalid("role must be waiter, cook or admin")
	}
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return model.Account{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		return model.Account{}, err
	}

	a := model.Account{TenantID: tenantID, Name: in.Name, Email: in.Email, PasswordHash: hash, Role: in.Role}
	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		t, err := s.tenants.GetForUpdateTx(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		n, err := s.accounts.CountEnabledTx(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if model.Reached(n, t.Plan.Limits().MaxUsers) {
			return ErrPlanLimit
		}
		return s.accounts.CreateTx(ctx, tx, &a)
	})
	if err != nil {
		return model.Account{}, err
	}
	emit(s.bus, model.EntityAccount, events.ActionInsert, tenantID, a.ID)
	return a, nil
}

// Update changes an account's name and role.
func (s *AccountService) Update(ctx context.Context, tenantID, id uint64, in AccountInput) (model.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return model.Account{}, invalid("name required")
	}
	if !in.Role.Valid() {
		return model.Account{}, invalid("role must be waiter, cook or admin")
	}
	if err := s.accounts.Update(ctx, tenantID, id, in.Name, in.Role); err != nil {
		return model.Account{}, err
	}
	emit(s.bus, model.EntityAccount, events.ActionUpdate, tenantID, id)
	return s.accounts.GetForTenant(ctx, tenantID, id)
}

// Disable soft deletes an account and revokes its refresh tokens.  An
// admin cannot disable their own account.
func (s *AccountService) Disable(ctx context.Context, tenantID, actorID, id uint64) error {
	if actorID == id {
		return ErrSelfDisable
	}
	if err := s.accounts.Disable(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.tokens.RevokeAccount(ctx, id); err != nil {
		return err
	}
	emit(s.bus, model.EntityAccount, events.ActionDelete, tenantID, id)
	return nil
}
