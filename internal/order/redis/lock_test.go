package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis runs an in-memory Redis for the lock tests.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestLockCaptureIsExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, time.Minute)
	ctx := context.Background()

	ok, err := r.LockCapture(ctx, "order-1", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.LockCapture(ctx, "order-1", "b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.LockCapture(ctx, "order-2", "b")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per order")
}

func TestUnlockCaptureChecksOwner(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, time.Minute)
	ctx := context.Background()

	_, err := r.LockCapture(ctx, "order-1", "a")
	require.NoError(t, err)

	require.NoError(t, r.UnlockCapture(ctx, "order-1", "b"))
	assert.True(t, mr.Exists("order_capture:order-1"), "foreign token must not release the lock")

	require.NoError(t, r.UnlockCapture(ctx, "order-1", "a"))
	assert.False(t, mr.Exists("order_capture:order-1"))

	require.NoError(t, r.UnlockCapture(ctx, "order-1", "a"), "unlocking twice is harmless")
}

func TestLockCaptureExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, 10*time.Second)
	ctx := context.Background()

	_, err := r.LockCapture(ctx, "order-1", "a")
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	ok, err := r.LockCapture(ctx, "order-1", "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentLockCapture(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, time.Minute)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.LockCapture(context.Background(), "order-1", "token")
			if err == nil && ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
}
