package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis starts a miniredis server and a client pointing at it
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestIdempotencyStore_LockIsExclusiveUntilReleased(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewRedisIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "payment-callback", "MT1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryLock(ctx, "payment-callback", "MT1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "payment-callback", "MT1"))
	ok, err = s.TryLock(ctx, "payment-callback", "MT1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyStore_LockExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisIdempotencyStore(client, 10*time.Second)
	ctx := context.Background()

	ok, _ := s.TryLock(ctx, "payment-callback", "MT2")
	require.True(t, ok)
	assert.True(t, mr.Exists("idemp:payment-callback:MT2"))

	mr.FastForward(11 * time.Second)
	ok, err := s.TryLock(ctx, "payment-callback", "MT2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyStore_RememberRecall(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewRedisIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	_, ok, err := s.Recall(ctx, "checkout", "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remember(ctx, "checkout", "k1", "order-1"))
	v, ok, err := s.Recall(ctx, "checkout", "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order-1", v)
}

func TestKeyedStore_PutGetDeleteAndExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisKeyedStore(client, "bookstore:", 30*time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "intent:PAY-1", []byte(`{"accountId":"acc-1"}`)))
	assert.True(t, mr.Exists("bookstore:intent:PAY-1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("bookstore:intent:PAY-1"))

	v, ok, err := s.Get(ctx, "intent:PAY-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"accountId":"acc-1"}`, string(v))

	require.NoError(t, s.Delete(ctx, "intent:PAY-1"))
	_, ok, err = s.Get(ctx, "intent:PAY-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "intent:PAY-2", []byte("x")))
	mr.FastForward(31 * time.Minute)
	_, ok, err = s.Get(ctx, "intent:PAY-2")
	require.NoError(t, err)
	assert.False(t, ok)
}
