package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
	"gorm.io/gorm"
)

// ItemRipple is an item mutation plus the order and table whose totals it moved.
type ItemRipple struct {
	Item    models.OrderItem `json:"item"`
	Order   models.Order     `json:"order"`
	Table   models.Table     `json:"table"`
	Removed bool             `json:"removed"`
}

// AddItem inserts an item into an open order and updates the order and table
// totals in the same transaction. The unit price is copied from the product.
func (g *Gateway) AddItem(ctx context.Context, orderID, productID uint, qty int, note string) (ItemRipple, error) {
	var res ItemRipple
	if qty <= 0 {
		return res, g.fail("add_item", "order_items", errors.New("quantity must be positive"))
	}

	db, cancel := g.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&res.Order, orderID).Error; err != nil {
			return err
		}
		if res.Order.Status != models.OrderOpen {
			return fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, res.Order.ID, res.Order.Status)
		}
		var p models.Product
		if err := tx.First(&p, productID).Error; err != nil {
			return err
		}
		if !p.Available {
			return fmt.Errorf("%w: product %d is unavailable", ErrConstraint, p.ID)
		}

		res.Item = models.OrderItem{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  qty,
			UnitPrice: p.Price,
			Note:      note,
			Status:    models.ItemPending,
		}
		if err := g.insert(tx, "order_items", &res.Item); err != nil {
			return err
		}
		return g.rippleTotals(tx, &res)
	})
	if err != nil {
		return ItemRipple{}, g.fail("add_item", "order_items", err)
	}
	return res, nil
}

// UpdateItemStatus moves an item forward. Delivered and cancelled items never
// change again.
func (g *Gateway) UpdateItemStatus(ctx context.Context, itemID uint, status string) (ItemRipple, error) {
	var res ItemRipple
	db, cancel := g.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&res.Item, itemID).Error; err != nil {
			return err
		}
		if !res.Item.CanTransition(status) {
			return fmt.Errorf("%w: item %d %s -> %s", ErrInvalidTransition, res.Item.ID, res.Item.Status, status)
		}
		res.Item.Status = status
		if err := g.save(tx, "order_items", &res.Item); err != nil {
			return err
		}
		if err := tx.First(&res.Order, res.Item.OrderID).Error; err != nil {
			return err
		}
		return g.rippleTotals(tx, &res)
	})
	if err != nil {
		return ItemRipple{}, g.fail("update_item_status", "order_items", err)
	}
	return res, nil
}

// RemoveItem deletes an item of an open order.
func (g *Gateway) RemoveItem(ctx context.Context, itemID uint) (ItemRipple, error) {
	res := ItemRipple{Removed: true}
	db, cancel := g.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&res.Item, itemID).Error; err != nil {
			return err
		}
		if err := tx.First(&res.Order, res.Item.OrderID).Error; err != nil {
			return err
		}
		if res.Order.Status != models.OrderOpen {
			return fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, res.Order.ID, res.Order.Status)
		}
		if err := g.remove(tx, "order_items", &res.Item); err != nil {
			return err
		}
		return g.rippleTotals(tx, &res)
	})
	if err != nil {
		return ItemRipple{}, g.fail("remove_item", "order_items", err)
	}
	return res, nil
}

// rippleTotals recomputes res.Order from its active items and the table total
// from every open order of that table. res.Order must be loaded.
func (g *Gateway) rippleTotals(tx *gorm.DB, res *ItemRipple) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", res.Order.ID).Find(&items).Error; err != nil {
		return err
	}
	var total float64
	for _, it := range items {
		if it.Active() {
			total += it.Subtotal()
		}
	}
	res.Order.Total = utils.Round2(total)
	if err := g.save(tx, "orders", &res.Order); err != nil {
		return err
	}

	if err := tx.First(&res.Table, res.Order.TableID).Error; err != nil {
		return err
	}
	var tableTotal float64
	if err := tx.Model(&models.Order{}).
		Select("COALESCE(SUM(total), 0)").
		Where("table_id = ? AND status = ?", res.Table.ID, models.OrderOpen).
		Scan(&tableTotal).Error; err != nil {
		return err
	}
	res.Table.Total = utils.Round2(tableTotal)
	return g.save(tx, "tables", &res.Table)
}

// OpenOrder creates an open order for an occupied table. A table holds at most
// one open order.
func (g *Gateway) OpenOrder(ctx context.Context, tableID uint) (models.Order, error) {
	var o models.Order
	db, cancel := g.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		var t models.Table
		if err := tx.First(&t, tableID).Error; err != nil {
			return err
		}
		if t.Status == models.TableFree {
			return fmt.Errorf("%w: table %d is free", ErrInvalidTransition, t.ID)
		}
		var open int64
		if err := tx.Model(&models.Order{}).
			Where("table_id = ? AND status = ?", tableID, models.OrderOpen).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("%w: table %d already has an open order", ErrConstraint, t.ID)
		}
		o = models.Order{RestaurantID: t.RestaurantID, TableID: t.ID, Status: models.OrderOpen}
		return g.insert(tx, "orders", &o)
	})
	if err != nil {
		return models.Order{}, g.fail("open_order", "orders", err)
	}
	return o, nil
}
