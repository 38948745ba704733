// Package store keeps one restaurant's live state in memory: tables, open
// orders with their items, products and categories. Intents write through the
// gateway and patch the local copy only after the write succeeds; realtime
// events are applied when they carry a newer version than the local row.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/models"
	"golang.org/x/sync/errgroup"
)

const defaultRestaurantName = "Meu Restaurante"

// Snapshot is a consistent copy of the store's collections, each sorted by id.
type Snapshot struct {
	Restaurant models.Restaurant `json:"restaurant"`
	Tables     []models.Table    `json:"tables"`
	Orders     []models.Order    `json:"orders"`
	Items      []models.ItemView `json:"items"`
	Products   []models.Product  `json:"products"`
	Categories []models.Category `json:"categories"`
}

type Store struct {
	gw          *gateway.Gateway
	actorID     uint
	defaultName string
	log         *logrus.Entry
	now         func() time.Time

	mu         sync.RWMutex
	loaded     bool
	restaurant models.Restaurant
	tables     []models.Table
	orders     []models.Order
	items      []models.ItemView
	products   []models.Product
	categories []models.Category

	// item rows pushed before their order, keyed by order id
	orphans map[uint][]orphanItem
}

type Option func(*Store)

// WithDefaultName sets the name used when the actor's restaurant is created.
func WithDefaultName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.defaultName = name
		}
	}
}

func WithLogger(log *logrus.Logger) Option {
	return func(s *Store) { s.log = log.WithField("component", "store") }
}

func New(gw *gateway.Gateway, actorID uint, opts ...Option) *Store {
	s := &Store{
		gw:          gw,
		actorID:     actorID,
		defaultName: defaultRestaurantName,
		log:         logrus.StandardLogger().WithField("component", "store"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("actor_id", actorID)
	return s
}

// Refresh reloads every collection from the gateway and replaces the local
// copy wholesale. It is the recovery path after missed events.
func (s *Store) Refresh(ctx context.Context) error {
	r, created, err := s.gw.GetOrCreateRestaurant(ctx, s.actorID, s.defaultName)
	if err != nil {
		return s.fail("refresh", "Não foi possível carregar o restaurante.", err)
	}
	if created {
		s.log.WithField("restaurant_id", r.ID).Info("restaurant provisioned")
	}

	var (
		tables     []models.Table
		orders     []models.Order
		items      []models.ItemView
		products   []models.Product
		categories []models.Category
	)
	byRestaurant := gateway.Filter{"restaurant_id": r.ID}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		tables, err = gateway.Find[models.Table](egCtx, s.gw, byRestaurant)
		return err
	})
	eg.Go(func() (err error) {
		orders, err = gateway.Find[models.Order](egCtx, s.gw, gateway.Filter{"restaurant_id": r.ID, "status": models.OrderOpen})
		return err
	})
	eg.Go(func() (err error) {
		items, err = s.gw.ItemsWithProductAndTable(egCtx, r.ID)
		return err
	})
	eg.Go(func() (err error) {
		products, err = gateway.Find[models.Product](egCtx, s.gw, byRestaurant)
		return err
	})
	eg.Go(func() (err error) {
		categories, err = gateway.Find[models.Category](egCtx, s.gw, byRestaurant)
		return err
	})
	if err := eg.Wait(); err != nil {
		return s.fail("refresh", "Não foi possível atualizar os dados.", err)
	}

	s.mu.Lock()
	s.restaurant = r
	s.tables = sortByID(tables)
	s.orders = sortByID(orders)
	s.items = sortByID(items)
	s.products = sortByID(products)
	s.categories = sortByID(categories)
	s.orphans = nil
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Snapshot returns copies of every collection.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Restaurant: s.restaurant,
		Tables:     append([]models.Table{}, s.tables...),
		Orders:     append([]models.Order{}, s.orders...),
		Items:      append([]models.ItemView{}, s.items...),
		Products:   append([]models.Product{}, s.products...),
		Categories: append([]models.Category{}, s.categories...),
	}
}

func (s *Store) Restaurant() models.Restaurant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restaurant
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Table returns the local copy of a table.
func (s *Store) Table(id uint) (models.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.tables, id)
	if i < 0 {
		return models.Table{}, false
	}
	return s.tables[i], true
}

// ItemsForOrder returns the order's items, active or not.
func (s *Store) ItemsForOrder(orderID uint) []models.OrderItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.OrderItem
	for _, v := range s.items {
		if v.OrderID == orderID {
			out = append(out, v.OrderItem)
		}
	}
	return out
}

// OpenOrderFor returns the open order of a table.
func (s *Store) OpenOrderFor(tableID uint) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openOrderLocked(tableID)
}

func (s *Store) openOrderLocked(tableID uint) (models.Order, bool) {
	for _, o := range s.orders {
		if o.TableID == tableID && o.Status == models.OrderOpen {
			return o, true
		}
	}
	return models.Order{}, false
}

func sortByID[T models.Versioned](list []T) []T {
	if list == nil {
		list = []T{}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].GetID() < list[j].GetID() })
	return list
}

func indexOf[T models.Versioned](list []T, id uint) int {
	for i := range list {
		if list[i].GetID() == id {
			return i
		}
	}
	return -1
}

// upsert inserts rec or replaces the local row. With guard set, a row whose
// version is not newer than the local one is ignored.
func upsert[T models.Versioned](list []T, rec T, guard bool) ([]T, bool) {
	if i := indexOf(list, rec.GetID()); i >= 0 {
		if guard && rec.GetVersion() <= list[i].GetVersion() {
			return list, false
		}
		list[i] = rec
		return list, true
	}
	list = append(list, rec)
	return sortByID(list), true
}

func removeID[T models.Versioned](list []T, id uint) ([]T, bool) {
	i := indexOf(list, id)
	if i < 0 {
		return list, false
	}
	return append(list[:i], list[i+1:]...), true
}
