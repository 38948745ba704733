package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/yeremiapane/restaurant-pos/models"
	"gorm.io/gorm"
)

// Debug procedures back the staff diagnostics screen.

type ActorInfo struct {
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	RestaurantID *uint  `json:"restaurant_id"`
	EmployeeRole string `json:"employee_role,omitempty"`
}

func (g *Gateway) DebugActor(ctx context.Context, actorID uint) (ActorInfo, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	var info ActorInfo
	var u models.User
	if err := db.First(&u, actorID).Error; err != nil {
		return info, g.fail("debug_actor", "users", err)
	}
	info.UserID, info.Email, info.Role = u.ID, u.Email, u.Role

	var r models.Restaurant
	err := db.Where("owner_id = ?", actorID).First(&r).Error
	switch {
	case err == nil:
		info.RestaurantID = &r.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return info, g.fail("debug_actor", "restaurants", err)
	}

	var e models.Employee
	err = db.Where("user_id = ?", actorID).First(&e).Error
	switch {
	case err == nil:
		info.EmployeeRole = e.Role
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return info, g.fail("debug_actor", "employees", err)
	}
	return info, nil
}

type AccessInfo struct {
	RestaurantID uint `json:"restaurant_id"`
	IsOwner      bool `json:"is_owner"`
	IsEmployee   bool `json:"is_employee"`
}

// DebugRestaurantAccess explains why an actor can or cannot see a restaurant.
func (g *Gateway) DebugRestaurantAccess(ctx context.Context, actorID, restaurantID uint) (AccessInfo, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	info := AccessInfo{RestaurantID: restaurantID}
	var r models.Restaurant
	if err := db.First(&r, restaurantID).Error; err != nil {
		return info, g.fail("debug_restaurant_access", "restaurants", err)
	}
	info.IsOwner = r.OwnerID == actorID

	var n int64
	err := db.Model(&models.Employee{}).
		Joins("JOIN companies ON companies.id = employees.company_id").
		Where("employees.user_id = ? AND companies.owner_id = ? AND employees.active = ?", actorID, r.OwnerID, true).
		Count(&n).Error
	if err != nil {
		return info, g.fail("debug_restaurant_access", "employees", err)
	}
	info.IsEmployee = n > 0
	return info, nil
}

type ChangeBacklog struct {
	Pending int64      `json:"pending"`
	Oldest  *time.Time `json:"oldest,omitempty"`
}

// DebugChangeBacklog reports how many change-log rows await dispatch.
func (g *Gateway) DebugChangeBacklog(ctx context.Context) (ChangeBacklog, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	var b ChangeBacklog
	q := db.Model(&models.DBChange{}).Where("processed = ?", false)
	if err := q.Count(&b.Pending).Error; err != nil {
		return b, g.fail("debug_change_backlog", "db_changes", err)
	}
	if b.Pending > 0 {
		var first models.DBChange
		if err := db.Where("processed = ?", false).Order("id").First(&first).Error; err != nil {
			return b, g.fail("debug_change_backlog", "db_changes", err)
		}
		b.Oldest = &first.ChangedAt
	}
	return b, nil
}
