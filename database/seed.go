package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seed creates a demo owner with a restaurant, a few tables and a small menu.
// It is a no-op when the demo owner already exists.
func Seed(db *gorm.DB, log *logrus.Logger) error {
	const email = "demo@restaurante.local"

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Info("seed data already present")
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		owner := models.User{Name: "Demo", Email: email, Password: string(hashed), Role: models.RoleOwner, Version: 1}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("seed owner: %w", err)
		}

		restaurant := models.Restaurant{OwnerID: owner.ID, Name: "Restaurante Demo", ServiceFeePercent: 10, CoverCharge: 15, Version: 1}
		if err := tx.Create(&restaurant).Error; err != nil {
			return fmt.Errorf("seed restaurant: %w", err)
		}

		for i := 1; i <= 6; i++ {
			table := models.Table{RestaurantID: restaurant.ID, Number: i, Capacity: 4, Status: models.TableFree, Version: 1}
			if err := tx.Create(&table).Error; err != nil {
				return fmt.Errorf("seed table %d: %w", i, err)
			}
		}

		for _, name := range []string{"Pratos", "Bebidas"} {
			if err := tx.Create(&models.Category{RestaurantID: restaurant.ID, Name: name, Active: true, Version: 1}).Error; err != nil {
				return err
			}
		}

		products := []models.Product{
			{Name: "Feijoada", Price: 45, Category: "Pratos", Stock: 20, MinStock: 5},
			{Name: "Moqueca", Price: 58, Category: "Pratos", Stock: 10, MinStock: 3},
			{Name: "Guaraná", Price: 7.5, Category: "Bebidas", Stock: 48, MinStock: 12},
		}
		for _, p := range products {
			p.RestaurantID = restaurant.ID
			p.Available = true
			p.Version = 1
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}

		log.WithField("restaurant_id", restaurant.ID).Info("seed data applied")
		return nil
	})
}
