package models

import "time"

// Employee roles
const (
	EmployeeWaiter  = "waiter"
	EmployeeKitchen = "kitchen"
	EmployeeCashier = "cashier"
	EmployeeStock   = "stock"
)

func ValidEmployeeRole(r string) bool {
	switch r {
	case EmployeeWaiter, EmployeeKitchen, EmployeeCashier, EmployeeStock:
		return true
	}
	return false
}

// Company is the legal profile behind a restaurant.
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;uniqueIndex" json:"owner_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Document  string    `gorm:"type:varchar(30)" json:"document"`
	Version   uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Company) GetID() uint        { return c.ID }
func (c Company) GetVersion() uint64 { return c.Version }

type Employee struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"not null;index" json:"company_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Role      string    `gorm:"type:varchar(20);not null" json:"role"`
	Active    bool      `gorm:"not null" json:"active"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	Version   uint64    `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e Employee) GetID() uint        { return e.ID }
func (e Employee) GetVersion() uint64 { return e.Version }
