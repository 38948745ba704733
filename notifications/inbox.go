package notifications

import (
	"sort"
	"sync"

	"github.com/yeremiapane/restaurant-pos/models"
)

// Inbox is one user's unread notifications, newest first.
type Inbox struct {
	mu     sync.RWMutex
	unread []models.Notification
}

func newInbox(unread []models.Notification) *Inbox {
	in := &Inbox{}
	for _, n := range unread {
		in.apply(n)
	}
	return in
}

func (in *Inbox) apply(n models.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i, cur := range in.unread {
		if cur.ID != n.ID {
			continue
		}
		if n.Version < cur.Version {
			return
		}
		if n.Read {
			in.unread = append(in.unread[:i], in.unread[i+1:]...)
		} else {
			in.unread[i] = n
		}
		return
	}
	if n.Read {
		return
	}
	in.unread = append(in.unread, n)
	sort.Slice(in.unread, func(i, j int) bool { return in.unread[i].ID > in.unread[j].ID })
}

func (in *Inbox) Unread() []models.Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return append([]models.Notification{}, in.unread...)
}

func (in *Inbox) Count() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.unread)
}
