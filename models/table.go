package models

import "time"

// Table statuses
const (
	TableFree            = "free"
	TableOccupied        = "occupied"
	TableAwaitingPayment = "awaiting_payment"
)

// Table is a physical restaurant table (mesa).
type Table struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;index" json:"restaurant_id"`
	Number       int        `gorm:"not null" json:"number"`
	Capacity     int        `gorm:"not null;default:4" json:"capacity"`
	Status       string     `gorm:"type:varchar(20);not null;default:'free'" json:"status"`
	ServerName   string     `gorm:"type:varchar(100)" json:"server_name"`
	OpenedAt     *time.Time `json:"opened_at"`
	Total        float64    `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	Version      uint64     `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

var tableTransitions = map[string][]string{
	TableFree:            {TableOccupied},
	TableOccupied:        {TableAwaitingPayment, TableFree},
	TableAwaitingPayment: {TableFree},
}

// CanTransition reports whether the table may move to the given status.
func (t Table) CanTransition(to string) bool {
	for _, s := range tableTransitions[t.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidTableStatus reports whether s is a known table status.
func ValidTableStatus(s string) bool {
	_, ok := tableTransitions[s]
	return ok
}

func (t Table) GetID() uint        { return t.ID }
func (t Table) GetVersion() uint64 { return t.Version }
