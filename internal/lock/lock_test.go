package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(ctx, "ticket:1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := km.Lock(ctx, "ticket:1")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := km.Lock(ctx, "ticket:2")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	km := NewKeyedMutex()
	unlock, err := km.Lock(context.Background(), "ticket:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "ticket:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, km.size())
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 100*time.Millisecond, nil)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ticket:7")
	require.NoError(t, err)
	assert.True(t, mr.Exists("helpdesk:lock:ticket:7"))

	_, err = locker.Lock(ctx, "ticket:7")
	assert.True(t, errors.Is(err, ErrNotAcquired))

	unlock()
	assert.False(t, mr.Exists("helpdesk:lock:ticket:7"))

	unlock2, err := locker.Lock(ctx, "ticket:7")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 100*time.Millisecond, nil)

	unlock, err := locker.Lock(context.Background(), "ticket:8")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, mr.Set("helpdesk:lock:ticket:8", "someone-else"))
	unlock()

	value, err := mr.Get("helpdesk:lock:ticket:8")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, 2*time.Second, nil)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ticket:9")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		unlock()
	}()

	unlock2, err := locker.Lock(ctx, "ticket:9")
	require.NoError(t, err)
	unlock2()
}
