package cache

import (
	"context"
	"errors"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisKeyedStore keeps short-lived records such as payment intents under a prefix.
type RedisKeyedStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisKeyedStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisKeyedStore {
	return &RedisKeyedStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisKeyedStore) Put(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

func (r *RedisKeyedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisKeyedStore) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

var _ usecase.KeyedStore = (*RedisKeyedStore)(nil)
