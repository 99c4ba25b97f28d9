package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLocker(NewClientFromRedis(rdb, logger), "test:"), mr
}

func TestWithLock_HoldsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t)
	key := locker.Key(OrderKey("shop-1", "1001"))

	err := locker.WithLock(context.Background(), OrderKey("shop-1", "1001"), time.Minute, func(ctx context.Context) error {
		assert.True(t, mr.Exists(key))
		assert.Equal(t, time.Minute, mr.TTL(key))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
}

func TestWithLock_ReturnsFnError(t *testing.T) {
	locker, mr := newTestLocker(t)
	errBoom := errors.New("settings store down")

	err := locker.WithLock(context.Background(), "order:shop-1:1001", time.Minute, func(context.Context) error {
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, mr.Exists("test:order:shop-1:1001"))
}

func TestWithLock_Contention(t *testing.T) {
	locker, mr := newTestLocker(t)
	require.NoError(t, mr.Set("test:order:shop-1:1001", "other-holder"))

	var ran atomic.Bool
	err := locker.WithLock(context.Background(), "order:shop-1:1001", time.Minute, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, ran.Load())

	// the other holder's key is untouched
	got, err := mr.Get("test:order:shop-1:1001")
	require.NoError(t, err)
	assert.Equal(t, "other-holder", got)
}

func TestWithLock_SerializesSameKey(t *testing.T) {
	locker, _ := newTestLocker(t)

	err := locker.WithLock(context.Background(), "order:shop-1:1001", time.Minute, func(ctx context.Context) error {
		inner := locker.WithLock(ctx, "order:shop-1:1001", time.Minute, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := locker.WithLock(ctx, "order:shop-1:1002", time.Minute, func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)
}

func TestWithLock_RenewsWhileHeld(t *testing.T) {
	locker, mr := newTestLocker(t)
	const ttl = 200 * time.Millisecond
	key := "test:order:shop-1:1001"

	err := locker.WithLock(context.Background(), "order:shop-1:1001", ttl, func(context.Context) error {
		mr.FastForward(150 * time.Millisecond)
		require.Less(t, mr.TTL(key), ttl/2)

		assert.Eventually(t, func() bool {
			return mr.TTL(key) > ttl/2
		}, 2*time.Second, 10*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
}

func TestWithLock_LostLockCancelsHolder(t *testing.T) {
	locker, mr := newTestLocker(t)
	key := "test:order:shop-1:1001"

	err := locker.WithLock(context.Background(), "order:shop-1:1001", 100*time.Millisecond, func(ctx context.Context) error {
		// another worker takes over the key after our TTL lapsed
		require.NoError(t, mr.Set(key, "other-holder"))

		select {
		case <-ctx.Done():
			assert.ErrorIs(t, context.Cause(ctx), ErrLockNotHeld)
			return ctx.Err()
		case <-time.After(2 * time.Second):
			t.Error("holder was not cancelled after losing the lock")
			return nil
		}
	})
	assert.ErrorIs(t, err, ErrLockNotHeld)

	// release never deletes another holder's token
	got, getErr := mr.Get(key)
	require.NoError(t, getErr)
	assert.Equal(t, "other-holder", got)
}
