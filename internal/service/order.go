package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
)

// ItemInput is one requested line: a meal and how many of it.
type ItemInput struct {
	MealID   uint64 `json:"meal_id"`
	Quantity int    `json:"quantity"`
}

// OrderInput carries what a waiter submits when placing or editing an
// order.  TableID is ignored for to-go orders.
type OrderInput struct {
	TableID      *uint64     `json:"table_id"`
	ToGo         bool        `json:"to_go"`
	CustomerName *string     `json:"customer_name"`
	Items        []ItemInput `json:"items"`
}

// validate rejects malformed input before any store is touched and
// returns the requested quantities merged per meal.
func (in *OrderInput) validate() (map[uint64]int, error) {
	if len(in.Items) == 0 {
		return nil, invalid("order has no items")
	}
	qty := make(map[uint64]int, len(in.Items))
	for _, it := range in.Items {
		if it.MealID == 0 {
			return nil, invalid("meal_id is required")
		}
		if it.Quantity <= 0 {
			return nil, invalid("quantity for meal %d must be positive", it.MealID)
		}
		qty[it.MealID] += it.Quantity
	}
	if in.ToGo {
		in.TableID = nil
	} else if in.TableID == nil || *in.TableID == 0 {
		return nil, invalid("table_id is required unless the order is to go")
	}
	if in.CustomerName != nil && *in.CustomerName == "" {
		in.CustomerName = nil
	}
	return qty, nil
}

// OrderService runs the order lifecycle.  Each mutation is one unit of
// work: stock, order rows and table occupancy commit together or not at
// all.
type OrderService struct {
	tx      Transactor
	orders  OrderStore
	meals   MealStore
	tables  TableStore
	tenants TenantStore
	bus     Notifier
	log     Logger
	loc     *time.Location
	now     func() time.Time
}

// NewOrderService wires an OrderService.  loc decides where a "day"
// starts for the daily order quota and for grouping paid orders.
func NewOrderService(s Stores, bus Notifier, log Logger, loc *time.Location) *OrderService {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderService{
		tx: s.Tx, orders: s.Orders, meals: s.Meals, tables: s.Tables, tenants: s.Tenants,
		bus: orNopNotifier(bus), log: orNopLogger(log), loc: loc, now: time.Now,
	}
}

func sortedKeys(m map[uint64]int) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// priceItems snapshots the current price of each requested meal.
func priceItems(qty map[uint64]int, meals map[uint64]model.Meal) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(qty))
	for _, id := range sortedKeys(qty) {
		items = append(items, model.OrderItem{MealID: id, Quantity: qty[id], UnitPrice: meals[id].Price})
	}
	return items
}

// claimTable locks a table and marks it occupied.  Disabled tables and
// tables already serving another order are refused.
func (s *OrderService) claimTable(ctx context.Context, tx *sql.Tx, tenantID, tableID uint64) error {
	t, err := s.tables.GetForUpdateTx(ctx, tx, tenantID, tableID)
	if err != nil {
		return fmt.Errorf("table %d: %w", tableID, err)
	}
	if t.Disabled {
		return fmt.Errorf("table %d: %w", tableID, ErrTableUnavailable)
	}
	if t.Occupied {
		return fmt.Errorf("table %d: %w", tableID, ErrTableOccupied)
	}
	return s.tables.SetOccupiedTx(ctx, tx, tenantID, tableID, true)
}

func (s *OrderService) releaseTable(ctx context.Context, tx *sql.Tx, o model.Order) error {
	if o.ToGo || o.TableID == nil {
		return nil
	}
	return s.tables.SetOccupiedTx(ctx, tx, o.TenantID, *o.TableID, false)
}

// Place creates an order: it checks the tenant's daily quota, takes the
// requested quantities out of stock, snapshots prices and occupies the
// table unless the order is to go.
func (s *OrderService) Place(ctx context.Context, tenantID, userID uint64, in OrderInput) (model.Order, error) {
	qty, err := in.validate()
	if err != nil {
		return model.Order{}, err
	}

	var order model.Order
	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		tenant, err := s.tenants.GetForUpdateTx(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if limit := tenant.Plan.Limits().MaxDailyOrders; limit != model.Unlimited {
			n, err := s.orders.CountSinceTx(ctx, tx, tenantID, startOfDay(now, s.loc))
			if err != nil {
				return err
			}
			if model.Reached(n, limit) {
				return ErrDailyOrderLimit
			}
		}

		meals, err := s.meals.LockTx(ctx, tx, tenantID, sortedKeys(qty))
		if err != nil {
			return err
		}
		for _, id := range sortedKeys(qty) {
			m, ok := meals[id]
			if !ok || m.Disabled {
				return fmt.Errorf("meal %d: %w", id, ErrMealUnavailable)
			}
			if m.Quantity < qty[id] {
				return fmt.Errorf("meal %d has %d left: %w", id, m.Quantity, ErrInsufficientStock)
			}
		}

		if !in.ToGo {
			if err := s.claimTable(ctx, tx, tenantID, *in.TableID); err != nil {
				return err
			}
		}

		items := priceItems(qty, meals)
		order = model.Order{
			TenantID:     tenantID,
			TableID:      in.TableID,
			UserID:       userID,
			CustomerName: in.CustomerName,
			ToGo:         in.ToGo,
			Total:        model.ItemTotal(items),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.orders.CreateTx(ctx, tx, &order); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := s.orders.InsertItemsTx(ctx, tx, order.ID, items); err != nil {
			return err
		}
		for _, it := range items {
			if err := s.meals.AdjustStockTx(ctx, tx, tenantID, it.MealID, -it.Quantity); err != nil {
				return err
			}
		}
		order.Items = items
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events.ActionInsert, order)
	s.publishMeals(tenantID, order.Items)
	if order.TableID != nil {
		s.emit(model.EntityTable, events.ActionUpdate, tenantID, *order.TableID)
	}
	return order, nil
}

// Edit replaces the items and placement of an unpaid order.  For every
// meal in the old or new item set, stock moves by old−new; the order's
// table occupancy follows a change of table or to-go flag.
func (s *OrderService) Edit(ctx context.Context, tenantID, orderID uint64, in OrderInput) (model.Order, error) {
	newQty, err := in.validate()
	if err != nil {
		return model.Order{}, err
	}

	var (
		order   model.Order
		touched []uint64
		tables  []uint64
	)
	err = s.tx.InTx(ctx, func(tx *sql.Tx) error {
		prev, err := s.orders.GetForUpdateTx(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if prev.Paid {
			return ErrOrderSettled
		}

		oldQty := model.Quantities(prev.Items)
		merged := make(map[uint64]int, len(oldQty)+len(newQty))
		for id := range oldQty {
			merged[id] = 0
		}
		for id := range newQty {
			merged[id] = 0
		}
		keys := sortedKeys(merged)
		meals, err := s.meals.LockTx(ctx, tx, tenantID, keys)
		if err != nil {
			return err
		}
		for _, id := range keys {
			delta := oldQty[id] - newQty[id]
			m, ok := meals[id]
			if newQty[id] > 0 && (!ok || (m.Disabled && delta < 0)) {
				return fmt.Errorf("meal %d: %w", id, ErrMealUnavailable)
			}
			if delta < 0 && m.Quantity+delta < 0 {
				return fmt.Errorf("meal %d has %d left: %w", id, m.Quantity, ErrInsufficientStock)
			}
		}

		var oldTable, newTable uint64
		if !prev.ToGo && prev.TableID != nil {
			oldTable = *prev.TableID
		}
		if !in.ToGo {
			newTable = *in.TableID
		}
		if oldTable != newTable {
			if newTable != 0 {
				if err := s.claimTable(ctx, tx, tenantID, newTable); err != nil {
					return err
				}
				tables = append(tables, newTable)
			}
			if oldTable != 0 {
				if err := s.tables.SetOccupiedTx(ctx, tx, tenantID, oldTable, false); err != nil {
					return err
				}
				tables = append(tables, oldTable)
			}
		}

		for _, id := range keys {
			delta := oldQty[id] - newQty[id]
			if delta == 0 {
				continue
			}
			if err := s.meals.AdjustStockTx(ctx, tx, tenantID, id, delta); err != nil {
				return err
			}
			touched = append(touched, id)
		}

		items := priceItems(newQty, meals)
		for i := range items {
			items[i].OrderID = prev.ID
		}
		if err := s.orders.ReplaceItemsTx(ctx, tx, prev.ID, items); err != nil {
			return err
		}

		order = prev
		order.TableID = in.TableID
		order.ToGo = in.ToGo
		order.CustomerName = in.CustomerName
		order.Total = model.ItemTotal(items)
		order.UpdatedAt = s.now().UTC()
		order.Items = items
		return s.orders.UpdateTx(ctx, tx, order)
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events.ActionUpdate, order)
	for _, id := range touched {
		s.emit(model.EntityMeal, events.ActionUpdate, tenantID, id)
	}
	for _, id := range tables {
		s.emit(model.EntityTable, events.ActionUpdate, tenantID, id)
	}
	return order, nil
}

// MarkServed sets the served flag.  It has no stock or table effect and
// is idempotent.
func (s *OrderService) MarkServed(ctx context.Context, tenantID, orderID uint64) (model.Order, error) {
	var (
		order   model.Order
		changed bool
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		o, err := s.orders.GetForUpdateTx(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		order = o
		if o.Served {
			return nil
		}
		order.Served, order.UpdatedAt, changed = true, s.now().UTC(), true
		return s.orders.SetServedTx(ctx, tx, tenantID, orderID, order.UpdatedAt)
	})
	if err != nil {
		return model.Order{}, err
	}
	if changed {
		s.publish(events.ActionUpdate, order)
	}
	return order, nil
}

// MarkPaid settles an order and frees its table.  Paying twice is a
// no-op; to-go orders touch no table.
func (s *OrderService) MarkPaid(ctx context.Context, tenantID, orderID uint64) (model.Order, error) {
	var (
		order   model.Order
		changed bool
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		o, err := s.orders.GetForUpdateTx(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		order = o
		if o.Paid {
			return nil
		}
		order.Paid, order.UpdatedAt, changed = true, s.now().UTC(), true
		if err := s.orders.SetPaidTx(ctx, tx, tenantID, orderID, order.UpdatedAt); err != nil {
			return err
		}
		return s.releaseTable(ctx, tx, o)
	})
	if err != nil {
		return model.Order{}, err
	}
	if changed {
		s.publish(events.ActionUpdate, order)
		if !order.ToGo && order.TableID != nil {
			s.emit(model.EntityTable, events.ActionUpdate, tenantID, *order.TableID)
		}
	}
	return order, nil
}

// Delete removes an unpaid order, returns its stored quantities to stock
// and frees its table.
func (s *OrderService) Delete(ctx context.Context, tenantID, orderID uint64) error {
	var order model.Order
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		o, err := s.orders.GetForUpdateTx(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if o.Paid {
			return ErrOrderSettled
		}
		order = o
		qty := model.Quantities(o.Items)
		for _, id := range sortedKeys(qty) {
			if err := s.meals.AdjustStockTx(ctx, tx, tenantID, id, qty[id]); err != nil {
				return err
			}
		}
		if err := s.orders.DeleteTx(ctx, tx, tenantID, orderID); err != nil {
			return err
		}
		return s.releaseTable(ctx, tx, o)
	})
	if err != nil {
		return err
	}

	s.publish(events.ActionDelete, order)
	s.publishMeals(tenantID, order.Items)
	if !order.ToGo && order.TableID != nil {
		s.emit(model.EntityTable, events.ActionUpdate, tenantID, *order.TableID)
	}
	return nil
}

// Unserved lists the kitchen queue.
func (s *OrderService) Unserved(ctx context.Context, tenantID uint64) ([]model.Order, error) {
	return s.orders.ListUnserved(ctx, tenantID)
}

// Unpaid lists orders waiting for settlement.
func (s *OrderService) Unpaid(ctx context.Context, tenantID uint64) ([]model.Order, error) {
	return s.orders.ListUnpaid(ctx, tenantID)
}

// Detail returns one order joined with meal, user, table and tenant data.
func (s *OrderService) Detail(ctx context.Context, tenantID, orderID uint64) (model.OrderDetail, error) {
	return s.orders.Detail(ctx, tenantID, orderID)
}

// DayOrders is the paid orders of one calendar day.
type DayOrders struct {
	Date   string          `json:"date"`
	Total  decimal.Decimal `json:"total"`
	Orders []model.Order   `json:"orders"`
}

// PaidByDay lists paid orders created on the calendar days from..to
// (inclusive, in the service's time zone) grouped per day, oldest first.
// Zero times default to today.
func (s *OrderService) PaidByDay(ctx context.Context, tenantID uint64, from, to time.Time) ([]DayOrders, error) {
	if from.IsZero() {
		from = s.now()
	}
	if to.IsZero() {
		to = s.now()
	}
	start, end := dayRange(from, to, s.loc)
	orders, err := s.orders.ListPaid(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	return GroupByDay(orders, s.loc), nil
}

// GroupByDay buckets orders by the local calendar day of CreatedAt.
func GroupByDay(orders []model.Order, loc *time.Location) []DayOrders {
	out := []DayOrders{}
	index := map[string]int{}
	for _, o := range orders {
		key := o.CreatedAt.In(loc).Format(DayLayout)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, DayOrders{Date: key, Total: decimal.Zero})
		}
		out[i].Orders = append(out[i].Orders, o)
		out[i].Total = out[i].Total.Add(model.ItemTotal(o.Items))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// dayRange turns two calendar days into the half-open UTC interval
// [start of from, start of the day after to).
func dayRange(from, to time.Time, loc *time.Location) (time.Time, time.Time) {
	if to.Before(from) {
		from, to = to, from
	}
	start := startOfDay(from, loc)
	t := to.In(loc)
	end := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc).UTC()
	return start, end
}

func (s *OrderService) publish(action events.Action, o model.Order) {
	s.emit(model.EntityOrder, action, o.TenantID, o.ID)
}

func (s *OrderService) publishMeals(tenantID uint64, items []model.OrderItem) {
	for _, it := range items {
		s.emit(model.EntityMeal, events.ActionUpdate, tenantID, it.MealID)
	}
}

func (s *OrderService) emit(topic model.Entity, action events.Action, tenantID, id uint64) {
	emit(s.bus, topic, action, tenantID, id)
}
