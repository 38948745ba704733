package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/database/dbtest"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newService(t *testing.T, bc Broadcaster) *Service {
	t.Helper()
	gw := gateway.New(dbtest.New(t), quietLogger())
	svc := NewService(gw, bc, quietLogger())
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)
	return svc
}

type recorder struct {
	mu  sync.Mutex
	got []models.Notification
}

func (r *recorder) add(n models.Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestSendPersistsAndReachesOnlyRecipient(t *testing.T) {
	svc := newService(t, NewLocalBroadcaster())
	ctx := context.Background()

	mine, other := &recorder{}, &recorder{}
	stop := svc.Listen(1, mine.add)
	defer stop()
	defer svc.Listen(2, other.add)()

	n, err := svc.Send(ctx, 1, "Pedido pronto", "Mesa 4", models.NotifyOrder, map[string]int{"table": 4})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.JSONEq(t, `{"table":4}`, n.Payload)

	assert.Equal(t, 1, mine.len())
	assert.Zero(t, other.len())

	stop()
	stop()
	_, err = svc.Send(ctx, 1, "Estoque baixo", "", models.NotifyStock, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.len(), "stopped listeners get nothing")

	list, err := svc.GetUserNotifications(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Estoque baixo", list[0].Title, "newest first")
}

func TestSendValidation(t *testing.T) {
	svc := newService(t, NewLocalBroadcaster())
	ctx := context.Background()

	_, err := svc.Send(ctx, 0, "x", "", models.NotifySystem, nil)
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = svc.Send(ctx, 1, "  ", "", models.NotifySystem, nil)
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = svc.Send(ctx, 1, "x", "", "sms", nil)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestInboxTracksUnread(t *testing.T) {
	svc := newService(t, NewLocalBroadcaster())
	ctx := context.Background()

	old, err := svc.Send(ctx, 3, "Antiga", "", models.NotifySystem, nil)
	require.NoError(t, err)

	in, err := svc.Inbox(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, in.Count())

	fresh, err := svc.Send(ctx, 3, "Nova", "", models.NotifyPayment, nil)
	require.NoError(t, err)
	_, err = svc.Send(ctx, 4, "Outro usuário", "", models.NotifyPayment, nil)
	require.NoError(t, err)

	unread := in.Unread()
	require.Len(t, unread, 2)
	assert.Equal(t, fresh.ID, unread[0].ID)

	read, err := svc.MarkAsRead(ctx, 3, old.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)
	assert.Equal(t, 1, in.Count())

	_, err = svc.MarkAsRead(ctx, 4, fresh.ID)
	assert.True(t, errors.Is(err, gateway.ErrNotFound), "cannot read someone else's notification")

	list, err := svc.GetUserNotifications(ctx, 3, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)

	same, err := svc.Inbox(ctx, 3)
	require.NoError(t, err)
	assert.Same(t, in, same)
}

func TestRedisBroadcasterFansOut(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *goredis.Client { return goredis.NewClient(&goredis.Options{Addr: mr.Addr()}) }

	pub := NewRedisBroadcaster(newClient(), quietLogger())
	sub := NewRedisBroadcaster(newClient(), quietLogger())
	defer pub.Close()
	defer sub.Close()

	got := make(chan models.Notification, 1)
	stop, err := sub.Subscribe(func(n models.Notification) { got <- n })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, pub.Publish(context.Background(), models.Notification{ID: 9, UserID: 2, Title: "Conta pedida"}))

	select {
	case n := <-got:
		assert.Equal(t, uint(9), n.ID)
		assert.Equal(t, "Conta pedida", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received over redis")
	}
	assert.NotPanics(t, stop)
}

func TestServiceOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	svc := newService(t, NewRedisBroadcaster(client, quietLogger()))

	rec := &recorder{}
	defer svc.Listen(5, rec.add)()

	_, err := svc.Send(context.Background(), 5, "Mesa liberada", "", models.NotifySystem, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.len() == 1 }, 2*time.Second, 10*time.Millisecond)
}
