package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepvio-subscription/internal/config"
	"prepvio-subscription/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewClient(ctx, &config.RedisConfig{URL: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, c.Close())

	c, err = NewClient(ctx, &config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
}

func TestCheckoutLimiter_Allow(t *testing.T) {
	c, mr := newTestClient(t)
	l := NewCheckoutLimiter(c)
	ctx := context.Background()
	key := CheckoutKey("u1", "create-order")

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, err := l.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key))

	// other users and routes have their own budget
	ok, err = l.Allow(ctx, CheckoutKey("u2", "create-order"), 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Allow(ctx, CheckoutKey("u1", "verify"), 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// the window resets
	mr.FastForward(time.Minute + time.Second)
	ok, err = l.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckoutLimiter_InvalidWindow(t *testing.T) {
	c, mr := newTestClient(t)
	l := NewCheckoutLimiter(c)

	_, err := l.Allow(context.Background(), CheckoutKey("u1", "verify"), 0, time.Minute)
	require.Error(t, err)
	_, err = l.Allow(context.Background(), CheckoutKey("u1", "verify"), 3, 0)
	require.Error(t, err)
	assert.False(t, mr.Exists(CheckoutKey("u1", "verify")))
}

func TestRedisLocker(t *testing.T) {
	c, mr := newTestClient(t)
	l := NewLocker(c)
	ctx := context.Background()

	token, err := l.TryLock(ctx, "lock:reconcile", time.Minute)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "lock:reconcile", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

	// a foreign token cannot release it
	require.NoError(t, l.Unlock(ctx, "lock:reconcile", "other"))
	assert.True(t, mr.Exists("lock:reconcile"))

	require.NoError(t, l.Unlock(ctx, "lock:reconcile", token))
	assert.False(t, mr.Exists("lock:reconcile"))

	_, err = l.TryLock(ctx, "lock:reconcile", time.Minute)
	assert.NoError(t, err)
}
