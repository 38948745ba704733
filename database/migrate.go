package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/models"
	"gorm.io/gorm"
)

// AllModels lists every table the service owns, in creation order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Restaurant{},
		&models.MenuPublication{},
		&models.Table{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Sale{},
		&models.Company{},
		&models.Employee{},
		&models.Notification{},
		&models.DBChange{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB, log *logrus.Logger) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("AutoMigrate completed.")

	// Baris lama tanpa versi dianggap versi pertama
	for _, table := range []string{"tables", "orders", "order_items", "products", "categories", "restaurants"} {
		if err := db.Exec("UPDATE " + table + " SET version = 1 WHERE version IS NULL OR version = 0").Error; err != nil {
			log.WithError(err).WithField("table", table).Warn("backfilling version failed")
		}
	}
	return nil
}
