package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

// CategoryRepo reads and writes the categories table.  Categories are
// hard deleted.
type CategoryRepo struct {
	db *sql.DB
}

// NewCategoryRepo constructs a CategoryRepo with the given DB handle.
func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// CreateTx inserts c inside tx and sets its ID.
func (r *CategoryRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Category) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO categories (tenant_id, name, description) VALUES (?, ?, ?)`,
		c.TenantID, c.Name, c.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// CountTx counts the tenant's categories inside tx.
func (r *CategoryRepo) CountTx(ctx context.Context, tx *sql.Tx, tenantID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE tenant_id = ?`, tenantID).Scan(&n)
	return n, err
}

// List returns the tenant's categories ordered by name.
func (r *CategoryRepo) List(ctx context.Context, tenantID uint64) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, description FROM categories WHERE tenant_id = ? ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns one category of the tenant or ErrNotFound.
func (r *CategoryRepo) Get(ctx context.Context, tenantID, id uint64) (model.Category, error) {
	var c model.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, description FROM categories WHERE id = ? AND tenant_id = ?`, id, tenantID).
		Scan(&c.ID, &c.TenantID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

// Update changes name and description.
func (r *CategoryRepo) Update(ctx context.Context, c model.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE id = ? AND tenant_id = ?`,
		c.Name, c.Description, c.ID, c.TenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, c.TenantID, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTx removes the category.  The caller checks for referencing
// meals first; the foreign key is the last line of defence and maps to
// ErrConflict.
func (r *CategoryRepo) DeleteTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		if isForeignKey(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
