package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

// TableRepo reads and writes the dining_tables table.  Tables are soft
// deleted through the disabled flag.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo constructs a TableRepo with the given DB handle.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

const tableColumns = `id, tenant_id, number, occupied, disabled`

func scanTable(s rowScanner) (model.Table, error) {
	var t model.Table
	err := s.Scan(&t.ID, &t.TenantID, &t.Number, &t.Occupied, &t.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// List returns the tenant's live tables ordered by number.
func (r *TableRepo) List(ctx context.Context, tenantID uint64) ([]model.Table, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tableColumns+` FROM dining_tables WHERE tenant_id = ? AND `+model.EntityTable.ListFilter()+` ORDER BY number`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Table{}
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTx inserts t after checking its number is free among the
// tenant's live tables.  A taken number yields ErrConflict.
func (r *TableRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Table) error {
	var taken int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dining_tables WHERE tenant_id = ? AND number = ? AND `+model.EntityTable.ListFilter()+` FOR UPDATE`,
		t.TenantID, t.Number).Scan(&taken)
	if err != nil {
		return err
	}
	if taken > 0 {
		return ErrConflict
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO dining_tables (tenant_id, number) VALUES (?, ?)`, t.TenantID, t.Number)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.Occupied, t.Disabled = false, false
	return nil
}

// GetForUpdateTx locks a table row of the tenant, disabled or not.
func (r *TableRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (model.Table, error) {
	return scanTable(tx.QueryRowContext(ctx,
		`SELECT `+tableColumns+` FROM dining_tables WHERE id = ? AND tenant_id = ? FOR UPDATE`, id, tenantID))
}

// SetOccupiedTx writes the occupied flag.
func (r *TableRepo) SetOccupiedTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, occupied bool) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE dining_tables SET occupied = ? WHERE id = ? AND tenant_id = ?`, occupied, id, tenantID)
	return err
}

// DisableTx soft deletes a table.
func (r *TableRepo) DisableTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE dining_tables SET `+model.EntityTable.SoftDeleteAssignment()+` WHERE id = ? AND tenant_id = ?`, id, tenantID)
	return err
}
