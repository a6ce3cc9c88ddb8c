package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

// AccountRepo reads and writes the accounts table.
type AccountRepo struct {
	db *sql.DB
}

// NewAccountRepo constructs an AccountRepo with the given DB handle.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, tenant_id, name, email, password_hash, role, enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (model.Account, error) {
	var a model.Account
	err := s.Scan(&a.ID, &a.TenantID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.Enabled, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateTx inserts a with an already hashed password and sets its ID.
// A taken email yields ErrEmailExists.
func (r *AccountRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Account) error {
	a.Email = NormalizeEmail(a.Email)
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (tenant_id, name, email, password_hash, role, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		a.TenantID, a.Name, a.Email, a.PasswordHash, string(a.Role), now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	a.Enabled = true
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

// GetByEmail fetches an account by normalized email regardless of
// tenant; login resolves the tenant from the account.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ? LIMIT 1`, NormalizeEmail(email)))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? LIMIT 1`, id))
}

// GetForTenant fetches an account only if it belongs to tenantID.
func (r *AccountRepo) GetForTenant(ctx context.Context, tenantID, id uint64) (model.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND tenant_id = ? LIMIT 1`, id, tenantID))
}

// ListEnabled returns the tenant's enabled accounts ordered by name.
func (r *AccountRepo) ListEnabled(ctx context.Context, tenantID uint64) ([]model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND `+model.EntityAccount.ListFilter()+` ORDER BY name, id`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountEnabledTx counts the tenant's enabled accounts inside tx.
func (r *AccountRepo) CountEnabledTx(ctx context.Context, tx *sql.Tx, tenantID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE tenant_id = ? AND `+model.EntityAccount.ListFilter(),
		tenantID).Scan(&n)
	return n, err
}

// Update changes the name and role of an enabled account.
func (r *AccountRepo) Update(ctx context.Context, tenantID, id uint64, name string, role model.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, role = ?, updated_at = ? WHERE id = ? AND tenant_id = ? AND `+model.EntityAccount.ListFilter(),
		name, string(role), time.Now().UTC(), id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Disable soft deletes an account.  Disabling an already disabled
// account reports ErrNotFound.
func (r *AccountRepo) Disable(ctx context.Context, tenantID, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET `+model.EntityAccount.SoftDeleteAssignment()+`, updated_at = ? WHERE id = ? AND tenant_id = ? AND `+model.EntityAccount.ListFilter(),
		time.Now().UTC(), id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
