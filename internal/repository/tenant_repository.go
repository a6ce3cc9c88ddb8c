package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

// TenantRepo reads and writes the tenants table.
type TenantRepo struct {
	db *sql.DB
}

// NewTenantRepo constructs a TenantRepo with the given DB handle.
func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{db: db} }

const tenantColumns = `id, name, logo, plan, created_at`

func scanTenant(row rowScanner) (model.Tenant, error) {
	var t model.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Logo, &t.Plan, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// CreateTx inserts a tenant inside tx and sets its ID.
func (r *TenantRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Tenant) error {
	if t.Plan == "" {
		t.Plan = model.PlanFree
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO tenants (name, logo, plan, created_at) VALUES (?, ?, ?, ?)`,
		t.Name, t.Logo, string(t.Plan), t.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID returns the tenant or ErrNotFound.
func (r *TenantRepo) GetByID(ctx context.Context, id uint64) (model.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id))
}

// GetForUpdateTx locks the tenant row for the rest of tx.  Workflows that
// check a plan limit before inserting take this lock first so two
// concurrent inserts cannot both pass the same count.
func (r *TenantRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Tenant, error) {
	return scanTenant(tx.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ? FOR UPDATE`, id))
}

// UpdateBranding changes the name and logo shown on receipts.
func (r *TenantRepo) UpdateBranding(ctx context.Context, id uint64, name, logo string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tenants SET name = ?, logo = ? WHERE id = ?`, name, logo, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for unchanged rows too; confirm existence.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Usage is the live count of plan-limited resources of a tenant.
type Usage struct {
	Users       int `json:"users"`
	Categories  int `json:"categories"`
	OrdersToday int `json:"orders_today"`
}

var usageQuery = `SELECT
	(SELECT COUNT(*) FROM accounts WHERE tenant_id = ? AND ` + model.EntityAccount.ListFilter() + `),
	(SELECT COUNT(*) FROM categories WHERE tenant_id = ?),
	(SELECT COUNT(*) FROM orders WHERE tenant_id = ? AND created_at >= ?)`

// Usage counts enabled accounts, categories and orders created at or
// after since.
func (r *TenantRepo) Usage(ctx context.Context, id uint64, since time.Time) (Usage, error) {
	var u Usage
	err := r.db.QueryRowContext(ctx, usageQuery, id, id, id, since).Scan(&u.Users, &u.Categories, &u.OrdersToday)
	return u, err
}
