package models

import "time"

const (
	OrderOpen   = "open"
	OrderClosed = "closed"
)

// Order is the open tab (comanda) of a table.
type Order struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;index" json:"restaurant_id"`
	TableID      uint       `gorm:"not null;index" json:"table_id"`
	Status       string     `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	Total        float64    `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	Version      uint64     `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (o Order) GetID() uint        { return o.ID }
func (o Order) GetVersion() uint64 { return o.Version }
