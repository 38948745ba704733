// Package session keeps per-session UI preferences (current route and the two
// floor filters) so they survive navigation between screens.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TTL bounds how long preferences outlive their last write.
const TTL = 12 * time.Hour

type Prefs struct {
	Route        string `json:"route"`
	StatusFilter string `json:"status_filter"`
	TableFilter  string `json:"table_filter"`
}

type Store interface {
	Get(ctx context.Context, sessionID string) (Prefs, error)
	Save(ctx context.Context, sessionID string, p Prefs) error
}

var ErrNoSession = errors.New("session id is required")

// Default is what a new session starts with.
func Default() Prefs {
	return Prefs{Route: "/dashboard", StatusFilter: "all", TableFilter: "all"}
}

type memoryEntry struct {
	prefs   Prefs
	expires time.Time
}

// MemoryStore is the single-instance fallback.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (Prefs, error) {
	if sessionID == "" {
		return Prefs{}, ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if !ok || m.now().After(e.expires) {
		delete(m.entries, sessionID)
		return Default(), nil
	}
	return e.prefs, nil
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, p Prefs) error {
	if sessionID == "" {
		return ErrNoSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[sessionID] = memoryEntry{prefs: p, expires: m.now().Add(TTL)}
	return nil
}

type RedisStore struct {
	client *goredis.Client
}

func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(sessionID string) string { return "restaurant:session:" + sessionID }

func (r *RedisStore) Get(ctx context.Context, sessionID string) (Prefs, error) {
	if sessionID == "" {
		return Prefs{}, ErrNoSession
	}
	raw, err := r.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Default(), nil
	}
	if err != nil {
		return Prefs{}, err
	}
	var p Prefs
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prefs{}, err
	}
	return p, nil
}

func (r *RedisStore) Save(ctx context.Context, sessionID string, p Prefs) error {
	if sessionID == "" {
		return ErrNoSession
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key(sessionID), raw, TTL).Err()
}
