package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	s := NewStore(nil, "chat", time.Minute)
	assert.Equal(t, "chat:presence:u1", s.key("u1"))
}

func TestGetReportsUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	s := NewStore(client, "chat", time.Minute)
	_, err := s.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.Error(t, s.SetOnline(context.Background(), "u1"))
}

func TestPresenceOnline(t *testing.T) {
	assert.True(t, Presence{Status: StatusOnline}.Online())
	assert.False(t, Presence{Status: StatusOffline}.Online())
}

func newMiniStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewStore(client, "chat", ttl)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s, mr
}

func TestOnlineEntryExpires(t *testing.T) {
	s, mr := newMiniStore(t, 2*time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SetOnline(ctx, "u1"))
	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Online())
	assert.EqualValues(t, 1700000000, p.LastSeen)
	assert.Equal(t, 2*time.Minute, mr.TTL("chat:presence:u1"))

	mr.FastForward(time.Minute)
	require.NoError(t, s.SetOnline(ctx, "u1"))
	mr.FastForward(90 * time.Second)
	p, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Online(), "a renewed entry outlives the first ttl")

	mr.FastForward(3 * time.Minute)
	p, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, p.Online())
	assert.Equal(t, "u1", p.UserID)
}

func TestOfflineEntryKeepsLastSeen(t *testing.T) {
	s, mr := newMiniStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SetOnline(ctx, "u1"))
	require.NoError(t, s.SetOffline(ctx, "u1"))
	assert.Zero(t, mr.TTL("chat:presence:u1"))

	mr.FastForward(time.Hour)
	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, p.Status)
	assert.EqualValues(t, 1700000000, p.LastSeen)
}
