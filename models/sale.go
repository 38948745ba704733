package models

import "time"

// Payment methods accepted at the counter
const (
	PaymentCash   = "cash"
	PaymentCredit = "credit"
	PaymentDebit  = "debit"
	PaymentPix    = "pix"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit, PaymentPix:
		return true
	}
	return false
}

// Sale is recorded when a table's tab is paid.
type Sale struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RestaurantID  uint      `gorm:"not null;index" json:"restaurant_id"`
	TableID       uint      `gorm:"not null" json:"table_id"`
	OrderID       uint      `gorm:"not null;index" json:"order_id"`
	Total         float64   `gorm:"type:decimal(10,2);not null" json:"total"`
	PaymentMethod string    `gorm:"type:varchar(20);not null" json:"payment_method"`
	ActorID       uint      `json:"actor_id"`
	Version       uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s Sale) GetID() uint        { return s.ID }
func (s Sale) GetVersion() uint64 { return s.Version }
