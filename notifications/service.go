// Package notifications persists staff notifications and pushes them to the
// recipient's live listeners.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/models"
)

var ErrInvalid = errors.New("invalid notification")

type listener struct {
	id int
	fn func(models.Notification)
}

type Service struct {
	gw  *gateway.Gateway
	bc  Broadcaster
	log *logrus.Entry

	mu        sync.Mutex
	nextID    int
	listeners map[uint][]listener
	inboxes   map[uint]*Inbox
	stopBC    func()
	stopped   bool
}

func NewService(gw *gateway.Gateway, bc Broadcaster, log *logrus.Logger) *Service {
	return &Service{
		gw:        gw,
		bc:        bc,
		log:       log.WithField("component", "notifications"),
		listeners: make(map[uint][]listener),
		inboxes:   make(map[uint]*Inbox),
	}
}

// Start subscribes to the broadcaster.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopBC != nil {
		return nil
	}
	if s.stopped {
		return errors.New("notification service stopped")
	}
	stop, err := s.bc.Subscribe(s.route)
	if err != nil {
		return fmt.Errorf("subscribe broadcaster: %w", err)
	}
	s.stopBC = stop
	return nil
}

// Stop detaches every listener. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	stop := s.stopBC
	s.stopBC = nil
	s.stopped = true
	s.listeners = make(map[uint][]listener)
	s.inboxes = make(map[uint]*Inbox)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// route hands a broadcast to the recipient's listeners only.
func (s *Service) route(n models.Notification) {
	s.mu.Lock()
	ls := append([]listener(nil), s.listeners[n.UserID]...)
	s.mu.Unlock()
	for _, l := range ls {
		l.fn(n)
	}
}

// Listen calls fn for every notification addressed to userID.
func (s *Service) Listen(userID uint, fn func(models.Notification)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[userID] = append(s.listeners[userID], listener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			ls := s.listeners[userID]
			for i, l := range ls {
				if l.id == id {
					s.listeners[userID] = append(ls[:i], ls[i+1:]...)
					break
				}
			}
			if len(s.listeners[userID]) == 0 {
				delete(s.listeners, userID)
			}
		})
	}
}

// Send persists a notification and broadcasts it. A failed broadcast is logged;
// the recipient still finds it by polling.
func (s *Service) Send(ctx context.Context, userID uint, title, message, typ string, payload interface{}) (models.Notification, error) {
	title = strings.TrimSpace(title)
	switch {
	case userID == 0:
		return models.Notification{}, fmt.Errorf("%w: recipient is required", ErrInvalid)
	case title == "":
		return models.Notification{}, fmt.Errorf("%w: title is required", ErrInvalid)
	case !models.ValidNotificationType(typ):
		return models.Notification{}, fmt.Errorf("%w: unknown type %q", ErrInvalid, typ)
	}

	n := models.Notification{UserID: userID, Title: title, Message: message, Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return models.Notification{}, fmt.Errorf("%w: payload: %v", ErrInvalid, err)
		}
		n.Payload = string(raw)
	}
	if err := gateway.Create(ctx, s.gw, &n); err != nil {
		return models.Notification{}, err
	}

	if err := s.bc.Publish(ctx, n); err != nil {
		s.log.WithError(err).WithField("notification_id", n.ID).Warn("broadcast failed")
	}
	return n, nil
}

// GetUserNotifications is the polling path, newest first.
func (s *Service) GetUserNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	filter := gateway.Filter{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	list, err := gateway.Find[models.Notification](ctx, s.gw, filter)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// MarkAsRead flags a notification of userID as read and updates live inboxes.
func (s *Service) MarkAsRead(ctx context.Context, userID, id uint) (models.Notification, error) {
	n, err := gateway.First[models.Notification](ctx, s.gw, id)
	if err != nil {
		return models.Notification{}, err
	}
	if n.UserID != userID {
		return models.Notification{}, fmt.Errorf("%w: notification %d", gateway.ErrNotFound, id)
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	if err := gateway.Save(ctx, s.gw, &n); err != nil {
		return models.Notification{}, err
	}

	s.mu.Lock()
	inbox := s.inboxes[userID]
	s.mu.Unlock()
	if inbox != nil {
		inbox.apply(n)
	}
	if err := s.bc.Publish(ctx, n); err != nil {
		s.log.WithError(err).WithField("notification_id", n.ID).Warn("broadcast failed")
	}
	return n, nil
}

// Inbox returns the live unread list of userID, loading it on first use.
func (s *Service) Inbox(ctx context.Context, userID uint) (*Inbox, error) {
	s.mu.Lock()
	if in, ok := s.inboxes[userID]; ok {
		s.mu.Unlock()
		return in, nil
	}
	in := newInbox(nil)
	s.inboxes[userID] = in
	s.mu.Unlock()

	// Listen before loading so nothing sent in between is missed.
	stop := s.Listen(userID, in.apply)
	unread, err := s.GetUserNotifications(ctx, userID, true)
	if err != nil {
		stop()
		s.mu.Lock()
		delete(s.inboxes, userID)
		s.mu.Unlock()
		return nil, err
	}
	for _, n := range unread {
		in.apply(n)
	}
	return in, nil
}
