package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
	"github.com/iliyamo/restaurant-orders/internal/repository"
)

// TableService manages the tenant's table registry.
type TableService struct {
	tx     Transactor
	tables TableStore
	orders OrderStore
	bus    Notifier
}

func NewTableService(s Stores, bus Notifier) *TableService {
	return &TableService{tx: s.Tx, tables: s.Tables, orders: s.Orders, bus: orNopNotifier(bus)}
}

// List returns the live tables ordered by number.
func (s *TableService) List(ctx context.Context, tenantID uint64) ([]model.Table, error) {
	return s.tables.List(ctx, tenantID)
}

// Create adds a table.  Numbers are positive and unique among the
// tenant's live tables; a disabled table's number may be reused.
func (s *TableService) Create(ctx context.Context, tenantID uint64, number int) (model.Table, error) {
	if number <= 0 {
		return model.Table{}, invalid("table number must be positive")
	}
	t := model.Table{TenantID: tenantID, Number: number}
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		return s.tables.CreateTx(ctx, tx, &t)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Table{}, fmt.Errorf("table %d already exists: %w", number, err)
		}
		return model.Table{}, err
	}
	emit(s.bus, model.EntityTable, events.ActionInsert, tenantID, t.ID)
	return t, nil
}

// live locks a table and hides disabled ones.
func (s *TableService) live(ctx context.Context, tx *sql.Tx, tenantID, id uint64) (model.Table, error) {
	t, err := s.tables.GetForUpdateTx(ctx, tx, tenantID, id)
	if err != nil {
		return t, err
	}
	if t.Disabled {
		return t, repository.ErrNotFound
	}
	return t, nil
}

// Disable soft deletes a table.  A table serving an order cannot be
// disabled.
func (s *TableService) Disable(ctx context.Context, tenantID, id uint64) error {
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		t, err := s.live(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if t.Occupied {
			return ErrTableOccupied
		}
		return s.tables.DisableTx(ctx, tx, tenantID, id)
	})
	if err != nil {
		return err
	}
	emit(s.bus, model.EntityTable, events.ActionDelete, tenantID, id)
	return nil
}

// ToggleOccupied flips a table's occupied flag by hand and returns the
// new state.  A table cannot be freed while an unpaid dine-in order sits
// at it; paying or deleting that order frees it.
func (s *TableService) ToggleOccupied(ctx context.Context, tenantID, id uint64) (model.Table, error) {
	var t model.Table
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		if t, err = s.live(ctx, tx, tenantID, id); err != nil {
			return err
		}
		if t.Occupied {
			n, err := s.orders.CountOpenAtTableTx(ctx, tx, tenantID, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrTableInUse
			}
		}
		t.Occupied = !t.Occupied
		return s.tables.SetOccupiedTx(ctx, tx, tenantID, id, t.Occupied)
	})
	if err != nil {
		return model.Table{}, err
	}
	emit(s.bus, model.EntityTable, events.ActionUpdate, tenantID, id)
	return t, nil
}
