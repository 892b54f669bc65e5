package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aq2208/gorder-bookstore/internal/usecase"
)

type entry struct {
	value   []byte
	expires time.Time
}

// KeyedStore is an expiring key/value map. Expired keys are dropped lazily on access.
type KeyedStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]entry
	now  func() time.Time
}

func NewKeyedStore(ttl time.Duration) *KeyedStore {
	return &KeyedStore{ttl: ttl, data: make(map[string]entry), now: time.Now}
}

func (s *KeyedStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{value: append([]byte(nil), value...), expires: s.now().Add(s.ttl)}
	return nil
}

func (s *KeyedStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (s *KeyedStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// setNX stores value only when key is absent or expired.
func (s *KeyedStore) setNX(key string, value []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false
	}
	s.data[key] = entry{value: value, expires: s.now().Add(s.ttl)}
	return true
}

func (s *KeyedStore) live(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if s.ttl > 0 && !s.now().Before(e.expires) {
		delete(s.data, key)
		return entry{}, false
	}
	return e, true
}

// IdempotencyStore mirrors the Redis lock and recall semantics in memory.
type IdempotencyStore struct {
	kv *KeyedStore
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{kv: NewKeyedStore(ttl)}
}

func (s *IdempotencyStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	return s.kv.setNX("idemp:"+scope+":"+key, []byte("1")), nil
}

func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.kv.Delete(ctx, "idemp:"+scope+":"+key)
}

func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.kv.Put(ctx, "idemp:map:"+scope+":"+key, []byte(value))
}

func (s *IdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, "idemp:map:"+scope+":"+key)
	return string(v), ok, err
}

var (
	_ usecase.KeyedStore       = (*KeyedStore)(nil)
	_ usecase.IdempotencyStore = (*IdempotencyStore)(nil)
)
