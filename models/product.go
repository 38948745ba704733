package models

import "time"

type Product struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;index" json:"restaurant_id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Price        float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	Category     string    `gorm:"type:varchar(100);index" json:"category"`
	Available    bool      `gorm:"not null" json:"available"`
	ImageURL     string    `gorm:"type:varchar(255)" json:"image_url"`
	Stock        int       `gorm:"not null;default:0" json:"stock"`
	MinStock     int       `gorm:"not null;default:0" json:"min_stock"`
	Version      uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p Product) GetID() uint        { return p.ID }
func (p Product) GetVersion() uint64 { return p.Version }

// Category groups products by name. Products reference it by name, not by key.
type Category struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;index" json:"restaurant_id"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	Active       bool      `gorm:"not null" json:"active"`
	Version      uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c Category) GetID() uint        { return c.ID }
func (c Category) GetVersion() uint64 { return c.Version }
