package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/realtime"
)

const (
	orphanTTL  = time.Minute
	maxOrphans = 1000
)

type orphanItem struct {
	item models.OrderItem
	seen time.Time
}

// Tables the store follows.
var Watched = []string{"restaurants", "tables", "orders", "order_items", "products", "categories"}

func decode[T any](row map[string]interface{}) (T, error) {
	var out T
	raw, err := json.Marshal(row)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}

// ApplyEvent reconciles a pushed row change. Inserts and updates are applied
// only when the row is newer than the local copy; deletes only when the row is
// known. It reports whether local state changed.
func (s *Store) ApplyEvent(ev realtime.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false
	}

	changed, err := s.applyLocked(ev)
	if err != nil {
		s.log.WithFields(logrus.Fields{"table": ev.Table, "action": ev.Action, "record_id": ev.RecordID}).
			WithError(err).Warn("ignoring undecodable event")
		return false
	}
	return changed
}

func (s *Store) applyLocked(ev realtime.Event) (bool, error) {
	rid := s.restaurant.ID
	deleted := ev.Action == realtime.Delete

	switch ev.Table {
	case "restaurants":
		r, err := decode[models.Restaurant](ev.Row())
		if err != nil || r.ID != rid || deleted || r.Version <= s.restaurant.Version {
			return false, err
		}
		s.restaurant = r
		return true, nil

	case "tables":
		t, err := decode[models.Table](ev.Row())
		if err != nil || t.RestaurantID != rid {
			return false, err
		}
		var changed bool
		if deleted {
			s.tables, changed = removeID(s.tables, t.ID)
		} else {
			s.tables, changed = upsert(s.tables, t, true)
		}
		return changed, nil

	case "orders":
		o, err := decode[models.Order](ev.Row())
		if err != nil || o.RestaurantID != rid {
			return false, err
		}
		i := indexOf(s.orders, o.ID)
		if deleted || o.Status != models.OrderOpen {
			delete(s.orphans, o.ID)
			if i < 0 || (!deleted && o.Version <= s.orders[i].Version) {
				return false, nil
			}
			s.dropOrderLocked(o.ID)
			return true, nil
		}
		var changed bool
		s.orders, changed = upsert(s.orders, o, true)
		if s.adoptOrphansLocked(o) {
			changed = true
		}
		return changed, nil

	case "order_items":
		it, err := decode[models.OrderItem](ev.Row())
		if err != nil {
			return false, err
		}
		if deleted {
			s.forgetOrphanLocked(it)
			var changed bool
			s.items, changed = removeID(s.items, it.ID)
			return changed, nil
		}
		oi := indexOf(s.orders, it.OrderID)
		if oi < 0 {
			// the order's own event may still be queued on its channel
			s.parkOrphanLocked(it)
			return false, nil
		}
		return s.attachItemLocked(it, s.orders[oi]), nil

	case "products":
		p, err := decode[models.Product](ev.Row())
		if err != nil || p.RestaurantID != rid {
			return false, err
		}
		var changed bool
		if deleted {
			s.products, changed = removeID(s.products, p.ID)
		} else {
			s.products, changed = upsert(s.products, p, true)
		}
		return changed, nil

	case "categories":
		c, err := decode[models.Category](ev.Row())
		if err != nil || c.RestaurantID != rid {
			return false, err
		}
		var changed bool
		if deleted {
			s.categories, changed = removeID(s.categories, c.ID)
		} else {
			s.categories, changed = upsert(s.categories, c, true)
		}
		return changed, nil
	}
	return false, fmt.Errorf("unwatched table %q", ev.Table)
}

func (s *Store) attachItemLocked(it models.OrderItem, o models.Order) bool {
	var t models.Table
	if ti := indexOf(s.tables, o.TableID); ti >= 0 {
		t = s.tables[ti]
	} else {
		t.ID = o.TableID
	}
	var changed bool
	s.items, changed = upsert(s.items, s.viewLocked(it, o, t), true)
	return changed
}

// parkOrphanLocked holds an item whose order is not known yet. Entries expire
// after orphanTTL.
func (s *Store) parkOrphanLocked(it models.OrderItem) {
	now := s.now()
	total := 0
	for id, list := range s.orphans {
		kept := list[:0]
		for _, o := range list {
			if now.Sub(o.seen) < orphanTTL {
				kept = append(kept, o)
			}
		}
		if len(kept) == 0 {
			delete(s.orphans, id)
			continue
		}
		s.orphans[id] = kept
		total += len(kept)
	}

	if s.orphans == nil {
		s.orphans = make(map[uint][]orphanItem)
	}
	list := s.orphans[it.OrderID]
	for i, o := range list {
		if o.item.ID == it.ID {
			if it.Version > o.item.Version {
				list[i] = orphanItem{item: it, seen: now}
			}
			return
		}
	}
	if total >= maxOrphans {
		s.log.WithField("order_item_id", it.ID).Warn("orphan item buffer full, dropping event")
		return
	}
	s.orphans[it.OrderID] = append(list, orphanItem{item: it, seen: now})
}

func (s *Store) forgetOrphanLocked(it models.OrderItem) {
	list := s.orphans[it.OrderID]
	for i, o := range list {
		if o.item.ID == it.ID {
			s.orphans[it.OrderID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// adoptOrphansLocked attaches the parked items of an order that just arrived.
func (s *Store) adoptOrphansLocked(o models.Order) bool {
	list, ok := s.orphans[o.ID]
	if !ok {
		return false
	}
	delete(s.orphans, o.ID)
	var changed bool
	for _, p := range list {
		if s.attachItemLocked(p.item, o) {
			changed = true
		}
	}
	return changed
}
