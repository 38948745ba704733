// Package realtime delivers row-level change events to subscribers.
//
// A subscription names a table and an optional equality filter. Subscribers
// that ask for the same (table, filter) pair share one channel, which owns a
// goroutine and a bounded queue. Events are delivered at most once: when a
// channel's queue is full the event is dropped, and nothing is replayed after
// a subscriber reconnects. Callers recover by refreshing their state.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Change actions
const (
	Insert = "INSERT"
	Update = "UPDATE"
	Delete = "DELETE"
)

const defaultQueueSize = 256

var ErrStopped = errors.New("realtime registry is stopped")

// Event is one row change. New is set for inserts and updates, Old for deletes.
type Event struct {
	Table    string                 `json:"table"`
	Action   string                 `json:"action"`
	RecordID uint                   `json:"record_id"`
	New      map[string]interface{} `json:"new,omitempty"`
	Old      map[string]interface{} `json:"old,omitempty"`
	At       time.Time              `json:"at"`
}

// Row returns the row the event is about.
func (e Event) Row() map[string]interface{} {
	if e.Action == Delete {
		return e.Old
	}
	return e.New
}

// Filter restricts a subscription to rows whose columns equal the given values.
type Filter map[string]interface{}

// Matches compares values by their printed form, so 4, uint(4) and the JSON
// float 4 are equal.
func (f Filter) Matches(row map[string]interface{}) bool {
	for k, want := range f {
		got, ok := row[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// key is the canonical channel key: the sorted pairs as JSON, so values
// cannot forge separators.
func (f Filter) key() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]interface{}, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]interface{}{k, f[k]})
	}
	raw, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Sprintf("%#v", pairs)
	}
	return string(raw)
}

// Handlers receive events by action. Nil handlers are skipped.
type Handlers struct {
	OnInsert func(Event)
	OnUpdate func(Event)
	OnDelete func(Event)
}

func (h Handlers) handle(ev Event) {
	var fn func(Event)
	switch ev.Action {
	case Insert:
		fn = h.OnInsert
	case Update:
		fn = h.OnUpdate
	case Delete:
		fn = h.OnDelete
	}
	if fn != nil {
		fn(ev)
	}
}

// Unsubscribe releases a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

type channel struct {
	key    string
	table  string
	filter Filter
	queue  chan Event
	done   chan struct{}

	mu   sync.RWMutex
	subs map[uint64]Handlers
}

// Registry is the set of open channels.
type Registry struct {
	log       *logrus.Entry
	queueSize int

	mu       sync.RWMutex
	channels map[string]*channel
	nextID   uint64
	running  bool
	stopped  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithQueueSize sets the per-channel queue length.
func WithQueueSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

func NewRegistry(log *logrus.Logger, opts ...Option) *Registry {
	r := &Registry{
		log:       log.WithField("component", "realtime"),
		queueSize: defaultQueueSize,
		channels:  make(map[string]*channel),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start enables dispatching.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.running = true
	}
}

// Stop closes every channel. Pending events are still delivered; new
// subscriptions are refused.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.running = false
	r.stopped = true
	for key, ch := range r.channels {
		close(ch.queue)
		delete(r.channels, key)
	}
}

// Subscribe opens (or joins) the channel for table and filter.
func (r *Registry) Subscribe(table string, filter Filter, h Handlers) (Unsubscribe, error) {
	if table == "" {
		return nil, errors.New("table is required")
	}
	key := table + "?" + filter.key()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, ErrStopped
	}

	ch, ok := r.channels[key]
	if !ok {
		ch = &channel{
			key:    key,
			table:  table,
			filter: filter,
			queue:  make(chan Event, r.queueSize),
			done:   make(chan struct{}),
			subs:   make(map[uint64]Handlers),
		}
		r.channels[key] = ch
		go r.pump(ch)
		r.log.WithField("channel", key).Debug("channel opened")
	}

	r.nextID++
	id := r.nextID
	ch.mu.Lock()
	ch.subs[id] = h
	ch.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.release(ch, id) })
	}, nil
}

func (r *Registry) release(ch *channel, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch.mu.Lock()
	delete(ch.subs, id)
	empty := len(ch.subs) == 0
	ch.mu.Unlock()

	// The channel may already be gone if the registry was stopped.
	if empty && r.channels[ch.key] == ch {
		delete(r.channels, ch.key)
		close(ch.queue)
		r.log.WithField("channel", ch.key).Debug("channel released")
	}
}

func (r *Registry) pump(ch *channel) {
	defer close(ch.done)
	for ev := range ch.queue {
		ch.mu.RLock()
		subs := make([]Handlers, 0, len(ch.subs))
		for _, h := range ch.subs {
			subs = append(subs, h)
		}
		ch.mu.RUnlock()

		for _, h := range subs {
			r.deliver(ch, h, ev)
		}
	}
}

func (r *Registry) deliver(ch *channel, h Handlers, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(logrus.Fields{"channel": ch.key, "panic": p}).Error("subscriber panicked")
		}
	}()
	h.handle(ev)
}

// Dispatch routes ev to every channel whose table and filter match. It never
// blocks.
func (r *Registry) Dispatch(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.running {
		return
	}

	row := ev.Row()
	for _, ch := range r.channels {
		if ch.table != ev.Table || !ch.filter.Matches(row) {
			continue
		}
		select {
		case ch.queue <- ev:
		default:
			r.log.WithFields(logrus.Fields{
				"channel":   ch.key,
				"action":    ev.Action,
				"record_id": ev.RecordID,
			}).Warn("channel queue full, event dropped")
		}
	}
}

// Channels reports how many channels are open.
func (r *Registry) Channels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
