package models

import "time"

// Order item statuses
const (
	ItemPending   = "pending"
	ItemPreparing = "preparing"
	ItemReady     = "ready"
	ItemDelivered = "delivered"
	ItemCancelled = "cancelled"
)

var itemRank = map[string]int{
	ItemPending:   0,
	ItemPreparing: 1,
	ItemReady:     2,
	ItemDelivered: 3,
}

// OrderItem is one line of a tab. UnitPrice is captured when the item is added
// and never follows later product price changes.
type OrderItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice float64   `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Note      string    `gorm:"type:text" json:"note"`
	Status    string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Version   uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active is false once the item was delivered or cancelled.
func (i OrderItem) Active() bool {
	return ItemActive(i.Status)
}

// ItemActive reports whether an item in the given status counts toward bills
// and kitchen views.
func ItemActive(status string) bool {
	return status != ItemDelivered && status != ItemCancelled
}

// CanTransition enforces forward-only movement. Cancellation is allowed from
// any non-terminal status.
func (i OrderItem) CanTransition(to string) bool {
	if !i.Active() {
		return false
	}
	if to == ItemCancelled {
		return true
	}
	from, ok := itemRank[i.Status]
	next, ok2 := itemRank[to]
	return ok && ok2 && next > from
}

// Subtotal is quantity times the snapshotted unit price.
func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

func (i OrderItem) GetID() uint        { return i.ID }
func (i OrderItem) GetVersion() uint64 { return i.Version }

// ItemView is an order item joined with its product, order and table for display.
type ItemView struct {
	OrderItem
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	TableID     uint   `json:"table_id"`
	TableNumber int    `json:"table_number"`
	OrderStatus string `json:"order_status"`
}
