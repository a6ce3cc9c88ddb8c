package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

// OrderRepo reads and writes orders and their order_items.  Writes take
// an explicit *sql.Tx: an order and its stock and table side effects are
// always committed together.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, tenant_id, table_id, user_id, customer_name, to_go, served, paid, total, created_at, updated_at`

func scanOrder(s rowScanner) (model.Order, error) {
	var (
		o        model.Order
		tableID  sql.NullInt64
		customer sql.NullString
	)
	err := s.Scan(&o.ID, &o.TenantID, &tableID, &o.UserID, &customer, &o.ToGo, &o.Served, &o.Paid, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if tableID.Valid {
		id := uint64(tableID.Int64)
		o.TableID = &id
	}
	if customer.Valid {
		name := customer.String
		o.CustomerName = &name
	}
	o.Items = []model.OrderItem{}
	return o, nil
}

// CountSinceTx counts the tenant's orders created at or after since.
func (r *OrderRepo) CountSinceTx(ctx context.Context, tx *sql.Tx, tenantID uint64, since time.Time) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE tenant_id = ? AND created_at >= ?`, tenantID, since).Scan(&n)
	return n, err
}

// CountOpenAtTableTx counts the unpaid dine-in orders seated at tableID.
func (r *OrderRepo) CountOpenAtTableTx(ctx context.Context, tx *sql.Tx, tenantID, tableID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE tenant_id = ? AND table_id = ? AND to_go = 0 AND paid = 0`,
		tenantID, tableID).Scan(&n)
	return n, err
}

// CreateTx inserts the order row (not its items) and sets o.ID.
// CreatedAt and UpdatedAt are taken from o.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	const q = `INSERT INTO orders (tenant_id, table_id, user_id, customer_name, to_go, served, paid, total, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		o.TenantID, o.TableID, o.UserID, o.CustomerName, o.ToGo, o.Served, o.Paid, o.Total, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// InsertItemsTx inserts line items in a single statement.  Passing an
// empty slice has no effect.
func (r *OrderRepo) InsertItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, meal_id, quantity, unit_price) VALUES `
	args := make([]any, 0, len(items)*4)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, orderID, it.MealID, it.Quantity, it.UnitPrice)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ReplaceItemsTx swaps the order's line items wholesale.
func (r *OrderRepo) ReplaceItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.OrderItem) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
		return err
	}
	return r.InsertItemsTx(ctx, tx, orderID, items)
}

// GetForUpdateTx locks an order of the tenant and loads its items.
func (r *OrderRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (model.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND tenant_id = ? FOR UPDATE`, id, tenantID))
	if err != nil {
		return o, err
	}
	orders := []model.Order{o}
	if err := attachItems(ctx, tx, orders); err != nil {
		return o, err
	}
	return orders[0], nil
}

// UpdateTx rewrites the editable scalars of an order: table, to-go
// flag, customer name and total.
func (r *OrderRepo) UpdateTx(ctx context.Context, tx *sql.Tx, o model.Order) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET table_id = ?, to_go = ?, customer_name = ?, total = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		o.TableID, o.ToGo, o.CustomerName, o.Total, o.UpdatedAt, o.ID, o.TenantID)
	return err
}

// SetServedTx marks an order served.
func (r *OrderRepo) SetServedTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET served = 1, updated_at = ? WHERE id = ? AND tenant_id = ?`, at, id, tenantID)
	return err
}

// SetPaidTx marks an order paid.
func (r *OrderRepo) SetPaidTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET paid = 1, updated_at = ? WHERE id = ? AND tenant_id = ?`, at, id, tenantID)
	return err
}

// DeleteTx removes an order; its items go with it (ON DELETE CASCADE).
func (r *OrderRepo) DeleteTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnserved returns orders the kitchen still has to serve, oldest
// first.  Paid orders are included when not yet served.
func (r *OrderRepo) ListUnserved(ctx context.Context, tenantID uint64) ([]model.Order, error) {
	return r.list(ctx, `WHERE tenant_id = ? AND served = 0 ORDER BY created_at, id`, tenantID)
}

// ListUnpaid returns orders not yet settled, oldest first.
func (r *OrderRepo) ListUnpaid(ctx context.Context, tenantID uint64) ([]model.Order, error) {
	return r.list(ctx, `WHERE tenant_id = ? AND paid = 0 ORDER BY created_at, id`, tenantID)
}

// ListPaid returns paid orders created in [from, to), oldest first.
func (r *OrderRepo) ListPaid(ctx context.Context, tenantID uint64, from, to time.Time) ([]model.Order, error) {
	return r.list(ctx, `WHERE tenant_id = ? AND paid = 1 AND created_at >= ? AND created_at < ? ORDER BY created_at, id`,
		tenantID, from, to)
}

func (r *OrderRepo) list(ctx context.Context, where string, args ...any) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders `+where, args...)
	if err != nil {
		return nil, err
	}
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if err := attachItems(ctx, r.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachItems loads the line items of orders with one query.
func attachItems(ctx context.Context, q querier, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(orders))
	args := make([]any, 0, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		args = append(args, o.ID)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT order_id, meal_id, quantity, unit_price FROM order_items WHERE order_id IN (`+placeholders(len(orders))+`) ORDER BY order_id, meal_id`,
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.OrderID, &it.MealID, &it.Quantity, &it.UnitPrice); err != nil {
			return err
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

// Detail returns an order joined with meal names, the placing user's
// name, the table number and the tenant's branding.
func (r *OrderRepo) Detail(ctx context.Context, tenantID, id uint64) (model.OrderDetail, error) {
	const q = `SELECT o.id, o.tenant_id, o.table_id, o.user_id, o.customer_name, o.to_go, o.served, o.paid, o.total, o.created_at, o.updated_at,
	                  a.name, dt.number, t.id, t.name, t.logo, t.plan, t.created_at
	           FROM orders o
	           JOIN accounts a ON a.id = o.user_id
	           JOIN tenants t ON t.id = o.tenant_id
	           LEFT JOIN dining_tables dt ON dt.id = o.table_id
	           WHERE o.id = ? AND o.tenant_id = ?`
	var (
		d        model.OrderDetail
		tableID  sql.NullInt64
		customer sql.NullString
		number   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id, tenantID).Scan(
		&d.ID, &d.TenantID, &tableID, &d.UserID, &customer, &d.ToGo, &d.Served, &d.Paid, &d.Total, &d.CreatedAt, &d.UpdatedAt,
		&d.UserName, &number, &d.Tenant.ID, &d.Tenant.Name, &d.Tenant.Logo, &d.Tenant.Plan, &d.Tenant.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if tableID.Valid {
		tid := uint64(tableID.Int64)
		d.TableID = &tid
	}
	if customer.Valid {
		name := customer.String
		d.CustomerName = &name
	}
	if number.Valid {
		n := int(number.Int64)
		d.TableNumber = &n
	}

	const qLines = `SELECT oi.order_id, oi.meal_id, oi.quantity, oi.unit_price, m.name
	                FROM order_items oi
	                JOIN meals m ON m.id = oi.meal_id
	                WHERE oi.order_id = ?
	                ORDER BY m.name, oi.meal_id`
	rows, err := r.db.QueryContext(ctx, qLines, d.ID)
	if err != nil {
		return d, err
	}
	defer rows.Close()
	d.Items = []model.OrderItem{}
	d.Lines = []model.OrderDetailLine{}
	for rows.Next() {
		var l model.OrderDetailLine
		if err := rows.Scan(&l.OrderID, &l.MealID, &l.Quantity, &l.UnitPrice, &l.MealName); err != nil {
			return d, err
		}
		l.LineTotal = l.OrderItem.LineTotal()
		d.Items = append(d.Items, l.OrderItem)
		d.Lines = append(d.Lines, l)
	}
	return d, rows.Err()
}
