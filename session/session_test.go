package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s Store) {
	ctx := context.Background()

	p, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	want := Prefs{Route: "/mesas", StatusFilter: "occupied", TableFilter: "4"}
	require.NoError(t, s.Save(ctx, "abc", want))
	p, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, want, p)

	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, s.Save(ctx, "", want), ErrNoSession)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exercise(t, s)

	now := time.Now()
	s.now = func() time.Time { return now.Add(TTL + time.Minute) }
	p, err := s.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, Default(), p, "expired sessions fall back to defaults")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	exercise(t, NewRedisStore(client))
	assert.Equal(t, TTL, mr.TTL(key("abc")))

	mr.FastForward(TTL + time.Second)
	p, err := NewRedisStore(client).Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}
