package gateway

import (
	"context"
	"errors"

	"github.com/yeremiapane/restaurant-pos/models"
	"gorm.io/gorm"
)

// GetOrCreateRestaurant returns the actor's restaurant, creating it with
// defaultName on first sign-in. created reports whether a row was inserted.
func (g *Gateway) GetOrCreateRestaurant(ctx context.Context, actorID uint, defaultName string) (models.Restaurant, bool, error) {
	var r models.Restaurant
	if actorID == 0 {
		return r, false, g.fail("get_or_create_restaurant", "restaurants", errors.New("actor is required"))
	}

	db, cancel := g.session(ctx)
	defer cancel()

	var created bool
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("owner_id = ?", actorID).First(&r).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		r = models.Restaurant{OwnerID: actorID, Name: defaultName, ServiceFeePercent: 10, CoverCharge: 15}
		created = true
		return g.insert(tx, "restaurants", &r)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent request created it first
		created = false
		err = db.Where("owner_id = ?", actorID).First(&r).Error
	}
	if err != nil {
		return models.Restaurant{}, false, g.fail("get_or_create_restaurant", "restaurants", err)
	}
	return r, created, nil
}

// ItemsWithProductAndTable returns every item of the restaurant's open orders
// joined with its product and table.
func (g *Gateway) ItemsWithProductAndTable(ctx context.Context, restaurantID uint) ([]models.ItemView, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	out := []models.ItemView{}
	err := db.Table("order_items").
		Select(`order_items.*, COALESCE(products.name, '') AS product_name, COALESCE(products.category, '') AS category,
			tables.id AS table_id, tables.number AS table_number, orders.status AS order_status`).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN tables ON tables.id = orders.table_id").
		Joins("LEFT JOIN products ON products.id = order_items.product_id").
		Where("orders.restaurant_id = ? AND orders.status = ?", restaurantID, models.OrderOpen).
		Order("order_items.id").
		Scan(&out).Error
	if err != nil {
		return nil, g.fail("items_with_product_and_table", "order_items", err)
	}
	return out, nil
}

// OpenOrderForTable returns the most recent open order of a table.
func (g *Gateway) OpenOrderForTable(ctx context.Context, tableID uint) (models.Order, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	var o models.Order
	if err := db.Where("table_id = ? AND status = ?", tableID, models.OrderOpen).
		Order("id DESC").First(&o).Error; err != nil {
		return o, g.fail("open_order_for_table", "orders", err)
	}
	return o, nil
}

// PublishedMenu resolves a public menu slug to its restaurant.
func (g *Gateway) PublishedMenu(ctx context.Context, slug string) (models.MenuPublication, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	var m models.MenuPublication
	if err := db.Where("slug = ? AND published = ?", slug, true).First(&m).Error; err != nil {
		return m, g.fail("published_menu", "menu_publications", err)
	}
	return m, nil
}

// ResolveOwner returns whose restaurant userID works in: the owner of the
// company that employs them, or userID itself.
func (g *Gateway) ResolveOwner(ctx context.Context, userID uint) (uint, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	var c models.Company
	err := db.Joins("JOIN employees ON employees.company_id = companies.id").
		Where("employees.user_id = ? AND employees.active = ?", userID, true).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return userID, nil
	}
	if err != nil {
		return 0, g.fail("resolve_owner", "employees", err)
	}
	return c.OwnerID, nil
}

// PublishMenu sets the public slug of a restaurant's menu and whether it is
// visible, creating the publication row on first use.
func (g *Gateway) PublishMenu(ctx context.Context, restaurantID uint, slug string, published bool) (models.MenuPublication, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	var m models.MenuPublication
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("restaurant_id = ?", restaurantID).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m = models.MenuPublication{RestaurantID: restaurantID, Slug: slug, Published: published}
			return g.insert(tx, "menu_publications", &m)
		}
		if err != nil {
			return err
		}
		m.Slug = slug
		m.Published = published
		return g.save(tx, "menu_publications", &m)
	})
	if err != nil {
		return models.MenuPublication{}, g.fail("publish_menu", "menu_publications", err)
	}
	return m, nil
}
