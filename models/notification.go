package models

import "time"

// Notification types
const (
	NotifyOrder   = "order"
	NotifyStock   = "stock"
	NotifyPayment = "payment"
	NotifySystem  = "system"
)

func ValidNotificationType(t string) bool {
	switch t {
	case NotifyOrder, NotifyStock, NotifyPayment, NotifySystem:
		return true
	}
	return false
}

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"type:varchar(100);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"type:varchar(20);not null;default:'system'" json:"type"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	Payload   string    `gorm:"type:text" json:"payload,omitempty"`
	Version   uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n Notification) GetID() uint        { return n.ID }
func (n Notification) GetVersion() uint64 { return n.Version }
