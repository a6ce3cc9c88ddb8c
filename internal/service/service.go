// Package service implements the restaurant workflows on top of the
// repositories: order placement and reconciliation, catalog and table
// management, accounts, authentication, reporting and plans.  Stores are
// consumed through the narrow interfaces below; the MySQL repositories
// satisfy them and tests substitute in-memory fakes.
package service

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
)

// Logger is the subset of the gommon logger the services write to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Notifier receives a change event after every committed mutation.
type Notifier interface {
	Publish(events.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(events.Event) {}

// Transactor runs fn inside one database transaction, rolling back when
// fn fails.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type TenantStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, t *model.Tenant) error
	GetByID(ctx context.Context, id uint64) (model.Tenant, error)
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Tenant, error)
	UpdateBranding(ctx context.Context, id uint64, name, logo string) error
	Usage(ctx context.Context, id uint64, since time.Time) (repository.Usage, error)
}

type AccountStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, a *model.Account) error
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetForTenant(ctx context.Context, tenantID, id uint64) (model.Account, error)
	ListEnabled(ctx context.Context, tenantID uint64) ([]model.Account, error)
	CountEnabledTx(ctx context.Context, tx *sql.Tx, tenantID uint64) (int, error)
	Update(ctx context.Context, tenantID, id uint64, name string, role model.Role) error
	Disable(ctx context.Context, tenantID, id uint64) error
}

type TokenStore interface {
	Store(ctx context.Context, accountID uint64, tokenHash string, exp time.Time) error
	Lookup(ctx context.Context, tokenHash string) (uint64, error)
	Consume(ctx context.Context, tokenHash string) (uint64, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAccount(ctx context.Context, accountID uint64) error
}

type CategoryStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, c *model.Category) error
	CountTx(ctx context.Context, tx *sql.Tx, tenantID uint64) (int, error)
	List(ctx context.Context, tenantID uint64) ([]model.Category, error)
	Get(ctx context.Context, tenantID, id uint64) (model.Category, error)
	Update(ctx context.Context, c model.Category) error
	DeleteTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error
}

type MealStore interface {
	List(ctx context.Context, tenantID uint64, f repository.MealFilter) ([]model.Meal, error)
	Get(ctx context.Context, tenantID, id uint64) (model.Meal, error)
	Create(ctx context.Context, m *model.Meal) error
	Update(ctx context.Context, m model.Meal) error
	SetImage(ctx context.Context, tenantID, id uint64, url, publicID string) error
	Disable(ctx context.Context, tenantID, id uint64) (model.Meal, error)
	CountByCategoryTx(ctx context.Context, tx *sql.Tx, tenantID, categoryID uint64) (int, error)
	LockTx(ctx context.Context, tx *sql.Tx, tenantID uint64, ids []uint64) (map[uint64]model.Meal, error)
	AdjustStockTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, delta int) error
}

type TableStore interface {
	List(ctx context.Context, tenantID uint64) ([]model.Table, error)
	CreateTx(ctx context.Context, tx *sql.Tx, t *model.Table) error
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (model.Table, error)
	SetOccupiedTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, occupied bool) error
	DisableTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error
}

type OrderStore interface {
	CountSinceTx(ctx context.Context, tx *sql.Tx, tenantID uint64, since time.Time) (int, error)
	CountOpenAtTableTx(ctx context.Context, tx *sql.Tx, tenantID, tableID uint64) (int, error)
	CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error
	InsertItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.OrderItem) error
	ReplaceItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.OrderItem) error
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (model.Order, error)
	UpdateTx(ctx context.Context, tx *sql.Tx, o model.Order) error
	SetServedTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, at time.Time) error
	SetPaidTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64, at time.Time) error
	DeleteTx(ctx context.Context, tx *sql.Tx, tenantID, id uint64) error
	ListUnserved(ctx context.Context, tenantID uint64) ([]model.Order, error)
	ListUnpaid(ctx context.Context, tenantID uint64) ([]model.Order, error)
	ListPaid(ctx context.Context, tenantID uint64, from, to time.Time) ([]model.Order, error)
	Detail(ctx context.Context, tenantID, id uint64) (model.OrderDetail, error)
}

// ImageHost stores meal pictures.  Upload returns the public URL and the
// host's id for later destruction.
type ImageHost interface {
	Upload(ctx context.Context, filename string, r io.Reader) (url, publicID string, err error)
	Destroy(ctx context.Context, publicID string) error
}

// Stores bundles every store a service may need.
type Stores struct {
	Tx         Transactor
	Tenants    TenantStore
	Accounts   AccountStore
	Tokens     TokenStore
	Categories CategoryStore
	Meals      MealStore
	Tables     TableStore
	Orders     OrderStore
}

// NewSQLStores wires the MySQL repositories over db.
func NewSQLStores(db *sql.DB) Stores {
	return Stores{
		Tx:         repository.NewTransactor(db),
		Tenants:    repository.NewTenantRepo(db),
		Accounts:   repository.NewAccountRepo(db),
		Tokens:     repository.NewTokenRepo(db),
		Categories: repository.NewCategoryRepo(db),
		Meals:      repository.NewMealRepo(db),
		Tables:     repository.NewTableRepo(db),
		Orders:     repository.NewOrderRepo(db),
	}
}

func emit(bus Notifier, topic model.Entity, action events.Action, tenantID, id uint64) {
	bus.Publish(events.Event{Topic: string(topic), Action: action, TenantID: tenantID, ID: id})
}

func orNopLogger(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

func orNopNotifier(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// startOfDay returns local midnight of t in loc, expressed in UTC.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc).UTC()
}
