package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/models"
)

// Channel is the pub/sub channel notifications are fanned out on.
const Channel = "restaurant:notifications"

// Broadcaster fans a notification out to every listener, across instances when
// the implementation supports it. Delivery is best effort.
type Broadcaster interface {
	Publish(ctx context.Context, n models.Notification) error
	Subscribe(fn func(models.Notification)) (stop func(), err error)
	Close() error
}

// LocalBroadcaster delivers within the process.
type LocalBroadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(models.Notification)
	closed bool
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{subs: make(map[int]func(models.Notification))}
}

func (b *LocalBroadcaster) Publish(_ context.Context, n models.Notification) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("broadcaster closed")
	}
	fns := make([]func(models.Notification), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(n)
	}
	return nil
}

func (b *LocalBroadcaster) Subscribe(fn func(models.Notification)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("broadcaster closed")
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

func (b *LocalBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[int]func(models.Notification))
	return nil
}

// RedisBroadcaster publishes on a Redis channel so every instance sees every
// notification.
type RedisBroadcaster struct {
	client *goredis.Client
	log    *logrus.Entry
}

func NewRedisBroadcaster(client *goredis.Client, log *logrus.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, log: log.WithField("component", "notifications.redis")}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, Channel, payload).Err()
}

func (b *RedisBroadcaster) Subscribe(fn func(models.Notification)) (func(), error) {
	ctx := context.Background()
	ps := b.client.Subscribe(ctx, Channel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var n models.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				b.log.WithError(err).Warn("dropping malformed notification")
				continue
			}
			fn(n)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ps.Close()
			<-done
		})
	}, nil
}

func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
