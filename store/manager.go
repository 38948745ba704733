package store

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/realtime"
)

// Manager owns one Store per signed-in actor and wires each to the registry.
type Manager struct {
	gw          *gateway.Gateway
	reg         *realtime.Registry
	log         *logrus.Logger
	defaultName string

	mu     sync.Mutex
	stores map[uint]*managed
}

type managed struct {
	store  *Store
	unsubs []realtime.Unsubscribe
}

func NewManager(gw *gateway.Gateway, reg *realtime.Registry, log *logrus.Logger, defaultName string) *Manager {
	return &Manager{
		gw:          gw,
		reg:         reg,
		log:         log,
		defaultName: defaultName,
		stores:      make(map[uint]*managed),
	}
}

// Get returns the actor's store, loading and subscribing it on first use.
func (m *Manager) Get(ctx context.Context, actorID uint) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ms, ok := m.stores[actorID]; ok {
		return ms.store, nil
	}

	s := New(m.gw, actorID, WithLogger(m.log), WithDefaultName(m.defaultName))
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	ms := &managed{store: s}
	handlers := realtime.Handlers{
		OnInsert: func(ev realtime.Event) { s.ApplyEvent(ev) },
		OnUpdate: func(ev realtime.Event) { s.ApplyEvent(ev) },
		OnDelete: func(ev realtime.Event) { s.ApplyEvent(ev) },
	}
	rid := s.Restaurant().ID
	for _, table := range Watched {
		filter := realtime.Filter{"restaurant_id": rid}
		switch table {
		case "restaurants":
			filter = realtime.Filter{"id": rid}
		case "order_items":
			filter = nil
		}
		unsub, err := m.reg.Subscribe(table, filter, handlers)
		if err != nil {
			ms.release()
			return nil, err
		}
		ms.unsubs = append(ms.unsubs, unsub)
	}

	m.stores[actorID] = ms
	m.log.WithFields(logrus.Fields{"actor_id": actorID, "restaurant_id": rid}).Info("store attached")
	return s, nil
}

// Release drops the actor's store and its subscriptions.
func (m *Manager) Release(actorID uint) {
	m.mu.Lock()
	ms, ok := m.stores[actorID]
	delete(m.stores, actorID)
	m.mu.Unlock()
	if ok {
		ms.release()
	}
}

// Close releases every store.
func (m *Manager) Close() {
	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[uint]*managed)
	m.mu.Unlock()
	for _, ms := range stores {
		ms.release()
	}
}

func (ms *managed) release() {
	for _, unsub := range ms.unsubs {
		unsub()
	}
}
