package models

import "time"

// Restaurant belongs to the user who signed up for it.
type Restaurant struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OwnerID           uint      `gorm:"not null;uniqueIndex" json:"owner_id"`
	Name              string    `gorm:"type:varchar(255);not null" json:"name"`
	ServiceFeePercent float64   `gorm:"type:decimal(5,2);not null;default:10" json:"service_fee_percent"`
	CoverCharge       float64   `gorm:"type:decimal(10,2);not null;default:15" json:"cover_charge"`
	Version           uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (r Restaurant) GetID() uint        { return r.ID }
func (r Restaurant) GetVersion() uint64 { return r.Version }

// MenuPublication controls the public digital menu of a restaurant.
type MenuPublication struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;uniqueIndex" json:"restaurant_id"`
	Slug         string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug"`
	Published    bool      `gorm:"not null;default:false" json:"published"`
	Version      uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (m MenuPublication) GetID() uint        { return m.ID }
func (m MenuPublication) GetVersion() uint64 { return m.Version }
