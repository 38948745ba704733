package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yeremiapane/restaurant-pos/models"
	"gorm.io/gorm"
)

// ErrActiveItems refuses to free a table whose open order still has items to
// serve or charge.
var ErrActiveItems = fmt.Errorf("%w: open order has active items", ErrInvalidTransition)

// TableChange is a table transition plus the order it opened or closed.
type TableChange struct {
	Table models.Table  `json:"table"`
	Order *models.Order `json:"order,omitempty"`
}

func (g *Gateway) loadTableFor(tx *gorm.DB, tableID uint, to string) (models.Table, error) {
	var t models.Table
	if err := tx.First(&t, tableID).Error; err != nil {
		return t, err
	}
	if !t.CanTransition(to) {
		return t, fmt.Errorf("%w: table %d %s -> %s", ErrInvalidTransition, t.ID, t.Status, to)
	}
	return t, nil
}

func openOrderOf(tx *gorm.DB, tableID uint) (*models.Order, error) {
	var o models.Order
	err := tx.Where("table_id = ? AND status = ?", tableID, models.OrderOpen).
		Order("id DESC").First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// OccupyTable seats guests at a free table and opens its order in the same
// transaction. A leftover open order fails the whole call.
func (g *Gateway) OccupyTable(ctx context.Context, tableID uint, server string) (TableChange, error) {
	var res TableChange
	db, cancel := g.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		t, err := g.loadTableFor(tx, tableID, models.TableOccupied)
		if err != nil {
			return err
		}
		left, err := openOrderOf(tx, t.ID)
		if err != nil {
			return err
		}
		if left != nil {
			return fmt.Errorf("%w: table %d already has open order %d", ErrConstraint, t.ID, left.ID)
		}

		now := g.now()
		t.Status = models.TableOccupied
		t.ServerName = strings.TrimSpace(server)
		t.OpenedAt = &now
		t.Total = 0
		if err := g.save(tx, "tables", &t); err != nil {
			return err
		}

		o := models.Order{RestaurantID: t.RestaurantID, TableID: t.ID, Status: models.OrderOpen}
		if err := g.insert(tx, "orders", &o); err != nil {
			return err
		}
		res = TableChange{Table: t, Order: &o}
		return nil
	})
	if err != nil {
		return TableChange{}, g.fail("occupy_table", "tables", err)
	}
	return res, nil
}

// RequestPayment marks an occupied table as waiting for the bill. Totals are
// left as stored.
func (g *Gateway) RequestPayment(ctx context.Context, tableID uint) (TableChange, error) {
	var res TableChange
	db, cancel := g.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		t, err := g.loadTableFor(tx, tableID, models.TableAwaitingPayment)
		if err != nil {
			return err
		}
		t.Status = models.TableAwaitingPayment
		if err := g.save(tx, "tables", &t); err != nil {
			return err
		}
		res.Table = t
		return nil
	})
	if err != nil {
		return TableChange{}, g.fail("request_payment", "tables", err)
	}
	return res, nil
}

// ReleaseTable frees a table without charging. The open order, if any, must
// have no active items and is closed with the table.
func (g *Gateway) ReleaseTable(ctx context.Context, tableID uint) (TableChange, error) {
	var res TableChange
	db, cancel := g.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		t, err := g.loadTableFor(tx, tableID, models.TableFree)
		if err != nil {
			return err
		}
		o, err := openOrderOf(tx, t.ID)
		if err != nil {
			return err
		}

		now := g.now()
		if o != nil {
			var items []models.OrderItem
			if err := tx.Where("order_id = ?", o.ID).Find(&items).Error; err != nil {
				return err
			}
			for _, it := range items {
				if it.Active() {
					return fmt.Errorf("%w: order %d", ErrActiveItems, o.ID)
				}
			}
			o.Status = models.OrderClosed
			o.ClosedAt = &now
			if err := g.save(tx, "orders", o); err != nil {
				return err
			}
		}

		t.Status = models.TableFree
		t.ServerName = ""
		t.OpenedAt = nil
		t.Total = 0
		if err := g.save(tx, "tables", &t); err != nil {
			return err
		}
		res = TableChange{Table: t, Order: o}
		return nil
	})
	if err != nil {
		return TableChange{}, g.fail("release_table", "tables", err)
	}
	return res, nil
}
