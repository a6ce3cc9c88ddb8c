package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
)

func TestAccountCreateRespectsUserLimit(t *testing.T) {
	db := newMemDB()
	tenant := db.addTenant(model.PlanFree)
	rec := &recorder{}
	svc := NewAccountService(db.stores(), rec, bcrypt.MinCost)
	ctx := context.Background()

	var created []model.Account
	for i, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		a, err := svc.Create(ctx, tenant.ID, AccountInput{Name: "Staff", Email: email, Password: "password1", Role: model.RoleWaiter})
		require.NoError(t, err, "account %d", i)
		created = append(created, a)
	}
	_, err := svc.Create(ctx, tenant.ID, AccountInput{Name: "Four", Email: "d@x.io", Password: "password1", Role: model.RoleCook})
	assert.ErrorIs(t, err, ErrPlanLimit)

	// disabled accounts no longer count
	require.NoError(t, svc.Disable(ctx, tenant.ID, created[0].ID, created[1].ID))
	_, err = svc.Create(ctx, tenant.ID, AccountInput{Name: "Four", Email: "d@x.io", Password: "password1", Role: model.RoleCook})
	require.NoError(t, err)

	list, err := svc.List(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, []string{"accounts:insert", "accounts:insert", "accounts:insert", "accounts:delete", "accounts:insert"}, rec.topics())
}

func TestAccountCreateValidation(t *testing.T) {
	db := newMemDB()
	tenant := db.addTenant(model.PlanPremium)
	svc := NewAccountService(db.stores(), nil, bcrypt.MinCost)

	cases := map[string]AccountInput{
		"no name":        {Email: "a@x.io", Password: "password1", Role: model.RoleWaiter},
		"bad role":       {Name: "A", Email: "a@x.io", Password: "password1", Role: "chef"},
		"bad email":      {Name: "A", Email: "nope", Password: "password1", Role: model.RoleWaiter},
		"short password": {Name: "A", Email: "a@x.io", Password: "short", Role: model.RoleWaiter},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tenant.ID, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, db.accounts)
}

func TestAccountEmailIsGloballyUnique(t *testing.T) {
	db := newMemDB()
	a := db.addTenant(model.PlanPremium)
	b := db.addTenant(model.PlanPremium)
	svc := NewAccountService(db.stores(), nil, bcrypt.MinCost)
	ctx := context.Background()

	_, err := svc.Create(ctx, a.ID, AccountInput{Name: "A", Email: "Same@X.io", Password: "password1", Role: model.RoleWaiter})
	require.NoError(t, err)
	_, err = svc.Create(ctx, b.ID, AccountInput{Name: "B", Email: "same@x.io ", Password: "password1", Role: model.RoleWaiter})
	assert.ErrorIs(t, err, repository.ErrEmailExists)
}

func TestAccountDisable(t *testing.T) {
	db := newMemDB()
	tenant := db.addTenant(model.PlanPremium)
	other := db.addTenant(model.PlanPremium)
	svc := NewAccountService(db.stores(), nil, bcrypt.MinCost)
	ctx := context.Background()

	admin, err := svc.Create(ctx, tenant.ID, AccountInput{Name: "Admin", Email: "admin@x.io", Password: "password1", Role: model.RoleAdmin})
	require.NoError(t, err)
	cook, err := svc.Create(ctx, tenant.ID, AccountInput{Name: "Cook", Email: "cook@x.io", Password: "password1", Role: model.RoleCook})
	require.NoError(t, err)
	db.tokens["h1"] = memToken{accountID: cook.ID, exp: time.Now().Add(time.Hour)}

	assert.ErrorIs(t, svc.Disable(ctx, tenant.ID, admin.ID, admin.ID), ErrSelfDisable)
	assert.ErrorIs(t, svc.Disable(ctx, other.ID, admin.ID, cook.ID), repository.ErrNotFound)

	require.NoError(t, svc.Disable(ctx, tenant.ID, admin.ID, cook.ID))
	assert.False(t, db.accounts[cook.ID].Enabled)
	assert.True(t, db.tokens["h1"].revoked)
	assert.ErrorIs(t, svc.Disable(ctx, tenant.ID, admin.ID, cook.ID), repository.ErrNotFound)
}

func TestAccountUpdate(t *testing.T) {
	db := newMemDB()
	tenant := db.addTenant(model.PlanPremium)
	svc := NewAccountService(db.stores(), nil, bcrypt.MinCost)
	ctx := context.Background()

	a, err := svc.Create(ctx, tenant.ID, AccountInput{Name: "Sam", Email: "sam@x.io", Password: "password1", Role: model.RoleWaiter})
	require.NoError(t, err)

	got, err := svc.Update(ctx, tenant.ID, a.ID, AccountInput{Name: " Sam K ", Role: model.RoleCook})
	require.NoError(t, err)
	assert.Equal(t, "Sam K", got.Name)
	assert.Equal(t, model.RoleCook, got.Role)
	assert.Equal(t, "sam@x.io", got.Email)

	_, err = svc.Update(ctx, tenant.ID, a.ID, AccountInput{Name: "Sam", Role: "boss"})
	assert.ErrorIs(t, err, ErrValidation)
}
