package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
)

// memDB is an in-memory stand-in for MySQL.  InTx snapshots it and
// restores the snapshot when the unit of work fails, which is what the
// workflows rely on from a real transaction.
type memDB struct {
	nextID     uint64
	tenants    map[uint64]model.Tenant
	accounts   map[uint64]model.Account
	tokens     map[string]memToken
	categories map[uint64]model.Category
	meals      map[uint64]model.Meal
	tables     map[uint64]model.Table
	orders     map[uint64]model.Order

	// fail makes the named store method return the error.
	fail map[string]error
	txs  int
}

type memToken struct {
	accountID uint64
	exp       time.Time
	revoked   bool
}

func newMemDB() *memDB {
	return &memDB{
		nextID:     100,
		tenants:    map[uint64]model.Tenant{},
		accounts:   map[uint64]model.Account{},
		tokens:     map[string]memToken{},
		categories: map[uint64]model.Category{},
		meals:      map[uint64]model.Meal{},
		tables:     map[uint64]model.Table{},
		orders:     map[uint64]model.Order{},
		fail:       map[string]error{},
	}
}

func (db *memDB) id() uint64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) check(method string) error { return db.fail[method] }

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem{}, o.Items...)
	return o
}

func (db *memDB) snapshot() memDB {
	s := *db
	s.tenants = cloneMap(db.tenants)
	s.accounts = cloneMap(db.accounts)
	s.tokens = cloneMap(db.tokens)
	s.categories = cloneMap(db.categories)
	s.meals = cloneMap(db.meals)
	s.tables = cloneMap(db.tables)
	s.orders = make(map[uint64]model.Order, len(db.orders))
	for k, o := range db.orders {
		s.orders[k] = cloneOrder(o)
	}
	return s
}

func (db *memDB) stores() Stores {
	return Stores{
		Tx:         memTx{db},
		Tenants:    memTenants{db},
		Accounts:   memAccounts{db},
		Tokens:     memTokens{db},
		Categories: memCategories{db},
		Meals:      memMeals{db},
		Tables:     memTables{db},
		Orders:     memOrders{db},
	}
}

// seed helpers

func (db *memDB) addTenant(plan model.Plan) model.Tenant {
	t := model.Tenant{ID: db.id(), Name: "Bistro", Plan: plan, CreatedAt: time.Now().UTC()}
	db.tenants[t.ID] = t
	return t
}

func (db *memDB) addMeal(tenantID uint64, name, price string, qty int) model.Meal {
	m := model.Meal{ID: db.id(), TenantID: tenantID, CategoryID: 1, Name: name, Price: dec(price), Quantity: qty}
	db.meals[m.ID] = m
	return m
}

func (db *memDB) addTable(tenantID uint64, number int) model.Table {
	t := model.Table{ID: db.id(), TenantID: tenantID, Number: number}
	db.tables[t.ID] = t
	return t
}

type memTx struct{ db *memDB }

func (f memTx) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	f.db.txs++
	snap := f.db.snapshot()
	if err := fn(nil); err != nil {
		fail := f.db.fail
		*f.db = snap
		f.db.fail = fail
		return err
	}
	return nil
}

type memTenants struct{ db *memDB }

func (f memTenants) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Tenant) error {
	if err := f.db.check("tenants.CreateTx"); err != nil {
		return err
	}
	t.ID = f.db.id()
	f.db.tenants[t.ID] = *t
	return nil
}

func (f memTenants) GetByID(ctx context.Context, id uint64) (model.Tenant, error) {
	t, ok := f.db.tenants[id]
	if !ok {
		return t, repository.ErrNotFound
	}
	return t, nil
}

func (f memTenants) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Tenant, error) {
	return f.GetByID(ctx, id)
}

func (f memTenants) UpdateBranding(ctx context.Context, id uint64, name, logo string) error {
	t, ok := f.db.tenants[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Name, t.Logo = name, logo
	f.db.tenants[id] = t
	return nil
}

func (f memTenants) Usage(ctx context.Context, id uint64, since time.Time) (repository.Usage, error) {
	var u repository.Usage
	for _, a := range f.db.accounts {
		if a.TenantID == id && a.Enabled {
			u.Users++
		}
	}
	for _, c := range f.db.categories {
		if c.TenantID == id {
			u.Categories++
		}
	}
	for _, o := range f.db.orders {
		if o.TenantID == id && !o.CreatedAt.Before(since) {
			u.OrdersToday++
		}
	}
	return u, nil
}

type memAccounts struct{ db *memDB }

func (f memAccounts) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Account) error {
	if err := f.db.check("accounts.CreateTx"); err != nil {
		return err
	}
	for _, other := range f.db.accounts {
		if other.Email == a.Email {
			return repository.ErrEmailExists
		}
	}
	a.ID = f.db.id()
	a.Enabled = true
	f.db.accounts[a.ID] = *a
	return nil
}

func (f memAccounts) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	for _, a := range f.db.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (f memAccounts) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	a, ok := f.db.accounts[id]
	if !ok {
		return a, repository.ErrNotFound
	}
	return a, nil
}

func (f memAccounts) GetForTenant(ctx context.Context, tenantID, id uint64) (model.Account, error) {
	a, ok := f.db.accounts[id]
	if !ok || a.TenantID != tenantID {
		return model.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (f memAccounts) ListEnabled(ctx context.Context, tenantID uint64) ([]model.Account, error) {
	out := []model.Account{}
	for _, a := range f.db.accounts {
		if a.TenantID == tenantID && a.Enabled {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f memAccounts) CountEnabledTx(ctx context.Context, tx *sql.Tx, tenantID uint64) (int, error) {
	l, _ := f.ListEnabled(ctx, tenantID)
	return len(l), nil
}

func (f memAccounts) Update(ctx context.Context, tenantID, id uint64, name string, role model.Role) error {
	a, err := f.GetForTenant(ctx, tenantID, id)
	if err != nil || !a.Enabled {
		return repository.ErrNotFound
	}
	a.Name, a.Role = name, role
	f.db.accounts[id] = a
	return nil
}

func (f memAccounts) Disable(ctx context.Context, tenantID, id uint64) error {
	a, err := f.GetForTenant(ctx, tenantID, id)
	if err != nil || !a.Enabled {
		return repository.ErrNotFound
	}
	a.Enabled = false
	f.db.accounts[id] = a
	return nil
}

type memTokens struct{ db *memDB }

func (f memTokens) Store(ctx context.Context, accountID uint64, hash string, exp time.Time) error {
	f.db.tokens[hash] = memToken{accountID: accountID, exp: exp}
	return nil
}

func (f memTokens) Lookup(ctx context.Context, hash string) (uint64, error) {
	t, ok := f.db.tokens[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return 0, repository.ErrNotFound
	}
	return t.accountID, nil
}

func (f memTokens) Consume(ctx context.Context, hash string) (uint64, error) {
	id, err := f.Lookup(ctx, hash)
	if err != nil {
		return 0, err
	}
	return id, f.Revoke(ctx, hash)
}

func (f memTokens) Revoke(ctx context.Context, hash string) error {
	t, ok := f.db.tokens[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return repository.ErrNotFound
	}
	t.revoked = true
	f.db.tokens[hash] = t
	return nil
}

func (f memTokens) RevokeAccount(ctx context.Context, accountID uint64) error {
	for h, t := range f.db.tokens {
		if t.accountID == accountID {
			t.revoked = true
			f.db.tokens[h] = t
		}
	}
	return nil
}

type memCategories struct{ db *memDB }

func (f memCategories) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Category) error {
	c.ID = f.db.id()
	f.db.categories[c.ID] = *c
	return nil
}

func (f memCategories) CountTx(ctx context.Context, tx *sql.Tx, tenantID uint64) (int, error) {
	l, _ := f.List(ctx, tenantID)
	return len(l), nil
}

func (f memCategories) List(ctx context.Context, tenantID uint64) ([]model.Category, error) {
	out := []model.Category{}
	for _, c := range f.db.categories {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f memCategories) Get(ctx context.Context, tenantID, id uint64) (model.Category, error) {
	c, ok := f.db.categories[id]
	if !ok || c.TenantID != tenantID {
		return model.Category{}, repository.ErrNotFound
	}
	return c, nil
}

func (f memCategories) Update(ctx context.Context, c model.Category) error {
	if _, err := f.Get(ctx, c.TenantID, c.ID); err != nil {
		return err
	}
	f.db.categories[c.ID] = c
	return nil
}

func (f memCategories) DeleteTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error {
	if _, err := f.Get(ctx, tenantID, id); err != nil {
		return err
	}
	delete(f.db.categories, id)
	return nil
}

type memMeals struct{ db *memDB }

func (f memMeals) List(ctx context.Context, tenantID uint64, flt repository.MealFilter) ([]model.Meal, error) {
	out := []model.Meal{}
	for _, m := range f.db.meals {
		if m.TenantID != tenantID || m.Disabled {
			continue
		}
		if flt.CategoryID != 0 && m.CategoryID != flt.CategoryID {
			continue
		}
		if flt.InStockOnly && !m.InStock() {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f memMeals) Get(ctx context.Context, tenantID, id uint64) (model.Meal, error) {
	m, ok := f.db.meals[id]
	if !ok || m.TenantID != tenantID || m.Disabled {
		return model.Meal{}, repository.ErrNotFound
	}
	return m, nil
}

func (f memMeals) Create(ctx context.Context, m *model.Meal) error {
	m.ID = f.db.id()
	f.db.meals[m.ID] = *m
	return nil
}

func (f memMeals) Update(ctx context.Context, m model.Meal) error {
	if _, err := f.Get(ctx, m.TenantID, m.ID); err != nil {
		return err
	}
	f.db.meals[m.ID] = m
	return nil
}

func (f memMeals) SetImage(ctx context.Context, tenantID, id uint64, url, publicID string) error {
	if err := f.db.check("meals.SetImage"); err != nil {
		return err
	}
	m, err := f.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	m.ImageURL, m.ImagePublicID = url, publicID
	f.db.meals[id] = m
	return nil
}

func (f memMeals) Disable(ctx context.Context, tenantID, id uint64) (model.Meal, error) {
	m, err := f.Get(ctx, tenantID, id)
	if err != nil {
		return m, err
	}
	d := m
	d.Disabled = true
	f.db.meals[id] = d
	return m, nil
}

func (f memMeals) CountByCategoryTx(ctx context.Context, tx *sql.Tx, tenantID, categoryID uint64) (int, error) {
	n := 0
	for _, m := range f.db.meals {
		if m.TenantID == tenantID && m.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (f memMeals) LockTx(ctx context.Context, tx *sql.Tx, tenantID uint64, ids []uint64) (map[uint64]model.Meal, error) {
	out := map[uint64]model.Meal{}
	for _, id := range ids {
		if m, ok := f.db.meals[id]; ok && m.TenantID == tenantID {
			out[id] = m
		}
	}
	return out, nil
}

func (f memMeals) AdjustStockTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, delta int) error {
	if err := f.db.check("meals.AdjustStockTx"); err != nil {
		return err
	}
	m, ok := f.db.meals[id]
	if !ok || m.TenantID != tenantID {
		return repository.ErrNotFound
	}
	m.Quantity += delta
	f.db.meals[id] = m
	return nil
}

type memTables struct{ db *memDB }

func (f memTables) List(ctx context.Context, tenantID uint64) ([]model.Table, error) {
	out := []model.Table{}
	for _, t := range f.db.tables {
		if t.TenantID == tenantID && !t.Disabled {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f memTables) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Table) error {
	for _, other := range f.db.tables {
		if other.TenantID == t.TenantID && other.Number == t.Number && !other.Disabled {
			return repository.ErrConflict
		}
	}
	t.ID = f.db.id()
	f.db.tables[t.ID] = *t
	return nil
}

func (f memTables) GetForUpdateTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (model.Table, error) {
	t, ok := f.db.tables[id]
	if !ok || t.TenantID != tenantID {
		return model.Table{}, repository.ErrNotFound
	}
	return t, nil
}

func (f memTables) SetOccupiedTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, occupied bool) error {
	if err := f.db.check("tables.SetOccupiedTx"); err != nil {
		return err
	}
	t, err := f.GetForUpdateTx(ctx, tx, tenantID, id)
	if err != nil {
		return err
	}
	t.Occupied = occupied
	f.db.tables[id] = t
	return nil
}

func (f memTables) DisableTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error {
	t, err := f.GetForUpdateTx(ctx, tx, tenantID, id)
	if err != nil {
		return err
	}
	t.Disabled = true
	f.db.tables[id] = t
	return nil
}

type memOrders struct{ db *memDB }

func (f memOrders) CountSinceTx(ctx context.Context, tx *sql.Tx, tenantID uint64, since time.Time) (int, error) {
	n := 0
	for _, o := range f.db.orders {
		if o.TenantID == tenantID && !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f memOrders) CountOpenAtTableTx(ctx context.Context, tx *sql.Tx, tenantID, tableID uint64) (int, error) {
	n := 0
	for _, o := range f.db.orders {
		if o.TenantID == tenantID && !o.ToGo && !o.Paid && o.TableID != nil && *o.TableID == tableID {
			n++
		}
	}
	return n, nil
}

func (f memOrders) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	if err := f.db.check("orders.CreateTx"); err != nil {
		return err
	}
	o.ID = f.db.id()
	stored := cloneOrder(*o)
	stored.Items = nil
	f.db.orders[o.ID] = stored
	return nil
}

func (f memOrders) InsertItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.OrderItem) error {
	if err := f.db.check("orders.InsertItemsTx"); err != nil {
		return err
	}
	o := f.db.orders[orderID]
	o.Items = append(o.Items, items...)
	f.db.orders[orderID] = o
	return nil
}

func (f memOrders) ReplaceItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.OrderItem) error {
	o := f.db.orders[orderID]
	o.Items = append([]model.OrderItem{}, items...)
	f.db.orders[orderID] = o
	return nil
}

func (f memOrders) GetForUpdateTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (model.Order, error) {
	o, ok := f.db.orders[id]
	if !ok || o.TenantID != tenantID {
		return model.Order{}, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (f memOrders) UpdateTx(ctx context.Context, tx *sql.Tx, o model.Order) error {
	if err := f.db.check("orders.UpdateTx"); err != nil {
		return err
	}
	stored := f.db.orders[o.ID]
	stored.TableID, stored.ToGo, stored.CustomerName, stored.Total, stored.UpdatedAt = o.TableID, o.ToGo, o.CustomerName, o.Total, o.UpdatedAt
	f.db.orders[o.ID] = stored
	return nil
}

func (f memOrders) SetServedTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, at time.Time) error {
	o := f.db.orders[id]
	o.Served, o.UpdatedAt = true, at
	f.db.orders[id] = o
	return nil
}

func (f memOrders) SetPaidTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, at time.Time) error {
	o := f.db.orders[id]
	o.Paid, o.UpdatedAt = true, at
	f.db.orders[id] = o
	return nil
}

func (f memOrders) DeleteTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error {
	if err := f.db.check("orders.DeleteTx"); err != nil {
		return err
	}
	if _, err := f.GetForUpdateTx(ctx, tx, tenantID, id); err != nil {
		return err
	}
	delete(f.db.orders, id)
	return nil
}

func (f memOrders) list(tenantID uint64, keep func(model.Order) bool) []model.Order {
	out := []model.Order{}
	for _, o := range f.db.orders {
		if o.TenantID == tenantID && keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f memOrders) ListUnserved(ctx context.Context, tenantID uint64) ([]model.Order, error) {
	return f.list(tenantID, func(o model.Order) bool { return !o.Served }), nil
}

func (f memOrders) ListUnpaid(ctx context.Context, tenantID uint64) ([]model.Order, error) {
	return f.list(tenantID, func(o model.Order) bool { return !o.Paid }), nil
}

func (f memOrders) ListPaid(ctx context.Context, tenantID uint64, from, to time.Time) ([]model.Order, error) {
	return f.list(tenantID, func(o model.Order) bool {
		return o.Paid && !o.CreatedAt.Before(from) && o.CreatedAt.Before(to)
	}), nil
}

func (f memOrders) Detail(ctx context.Context, tenantID, id uint64) (model.OrderDetail, error) {
	o, err := f.GetForUpdateTx(ctx, nil, tenantID, id)
	if err != nil {
		return model.OrderDetail{}, err
	}
	d := model.OrderDetail{Order: o, Tenant: f.db.tenants[tenantID], UserName: f.db.accounts[o.UserID].Name}
	for _, it := range o.Items {
		d.Lines = append(d.Lines, model.OrderDetailLine{OrderItem: it, MealName: f.db.meals[it.MealID].Name, LineTotal: it.LineTotal()})
	}
	return d, nil
}

// recorder collects published events.
type recorder struct{ events []events.Event }

func (r *recorder) Publish(e events.Event) { r.events = append(r.events, e) }

func (r *recorder) topics() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Topic + ":" + string(e.Action)
	}
	return out
}
