package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

// MealRepo reads and writes the meals table, including the stock
// counter the order workflow adjusts.
type MealRepo struct {
	db *sql.DB
}

// NewMealRepo constructs a MealRepo with the given DB handle.
func NewMealRepo(db *sql.DB) *MealRepo { return &MealRepo{db: db} }

const mealColumns = `id, tenant_id, category_id, name, price, quantity, image_url, image_public_id, disabled`

func scanMeal(s rowScanner) (model.Meal, error) {
	var m model.Meal
	err := s.Scan(&m.ID, &m.TenantID, &m.CategoryID, &m.Name, &m.Price, &m.Quantity, &m.ImageURL, &m.ImagePublicID, &m.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

// MealFilter narrows List.  Zero values mean no filter.
type MealFilter struct {
	CategoryID  uint64
	InStockOnly bool
}

// List returns the tenant's live meals ordered by name.
func (r *MealRepo) List(ctx context.Context, tenantID uint64, f MealFilter) ([]model.Meal, error) {
	q := `SELECT ` + mealColumns + ` FROM meals WHERE tenant_id = ? AND ` + model.EntityMeal.ListFilter()
	args := []any{tenantID}
	if f.CategoryID != 0 {
		q += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.InStockOnly {
		q += ` AND quantity > 0`
	}
	q += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Meal{}
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Get returns a live meal of the tenant or ErrNotFound.
func (r *MealRepo) Get(ctx context.Context, tenantID, id uint64) (model.Meal, error) {
	return scanMeal(r.db.QueryRowContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE id = ? AND tenant_id = ? AND `+model.EntityMeal.ListFilter(), id, tenantID))
}

// Create inserts m and sets its ID.
func (r *MealRepo) Create(ctx context.Context, m *model.Meal) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO meals (tenant_id, category_id, name, price, quantity, image_url, image_public_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.TenantID, m.CategoryID, m.Name, m.Price, m.Quantity, m.ImageURL, m.ImagePublicID)
	if err != nil {
		if isForeignKey(err) {
			return ErrNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// Update rewrites the editable fields of a live meal.
func (r *MealRepo) Update(ctx context.Context, m model.Meal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE meals SET category_id = ?, name = ?, price = ?, quantity = ?
		 WHERE id = ? AND tenant_id = ? AND `+model.EntityMeal.ListFilter(),
		m.CategoryID, m.Name, m.Price, m.Quantity, m.ID, m.TenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, m.TenantID, m.ID); err != nil {
			return err
		}
	}
	return nil
}

// SetImage stores the hosted image reference of a meal.
func (r *MealRepo) SetImage(ctx context.Context, tenantID, id uint64, url, publicID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE meals SET image_url = ?, image_public_id = ? WHERE id = ? AND tenant_id = ? AND `+model.EntityMeal.ListFilter(),
		url, publicID, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}

// Disable soft deletes a meal and returns it as it was, so the caller
// can release its hosted image.
func (r *MealRepo) Disable(ctx context.Context, tenantID, id uint64) (model.Meal, error) {
	m, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return m, err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE meals SET `+model.EntityMeal.SoftDeleteAssignment()+` WHERE id = ? AND tenant_id = ?`, id, tenantID)
	return m, err
}

// CountByCategoryTx counts meals (live or disabled) referencing a category.
func (r *MealRepo) CountByCategoryTx(ctx context.Context, tx *sql.Tx, tenantID, categoryID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM meals WHERE tenant_id = ? AND category_id = ?`, tenantID, categoryID).Scan(&n)
	return n, err
}

// LockTx selects the given meals FOR UPDATE and returns them keyed by
// id.  Disabled meals are included; ids that do not exist for the
// tenant are simply absent from the map.
func (r *MealRepo) LockTx(ctx context.Context, tx *sql.Tx, tenantID uint64, ids []uint64) (map[uint64]model.Meal, error) {
	out := make(map[uint64]model.Meal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE tenant_id = ? AND id IN (`+placeholders(len(ids))+`) ORDER BY id FOR UPDATE`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// AdjustStockTx adds delta (negative to take stock) to a meal's
// quantity.
func (r *MealRepo) AdjustStockTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, delta int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE meals SET quantity = quantity + ? WHERE id = ? AND tenant_id = ?`, delta, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
