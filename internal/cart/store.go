package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pkgredis "github.com/angelmondragon/cardapy-backend/pkg/redis"
)

// Store persists carts by key. Update must apply fn atomically with respect to
// other updates of the same key.
type Store interface {
	Load(ctx context.Context, key string) (*Cart, error)
	Update(ctx context.Context, key string, fn func(*Cart) error) (*Cart, error)
}

type redisUpdater interface {
	Get(ctx context.Context, key string) (string, error)
	Update(ctx context.Context, key string, ttl time.Duration, fn pkgredis.UpdateFunc) error
}

// RedisStore keeps each cart as a JSON document that expires after ttl of inactivity.
type RedisStore struct {
	client redisUpdater
	ttl    time.Duration
}

// NewRedisStore builds a store on top of the shared redis client.
func NewRedisStore(client redisUpdater, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*Cart, error) {
	raw, err := s.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNil(err) {
			return &Cart{}, nil
		}
		return nil, err
	}
	return decode([]byte(raw))
}

func (s *RedisStore) Update(ctx context.Context, key string, fn func(*Cart) error) (*Cart, error) {
	var result *Cart
	err := s.client.Update(ctx, key, s.ttl, func(current []byte, exists bool) ([]byte, error) {
		c := &Cart{}
		if exists {
			decoded, err := decode(current)
			if err != nil {
				return nil, err
			}
			c = decoded
		}
		if err := fn(c); err != nil {
			return nil, err
		}
		result = c
		if c.IsEmpty() {
			return nil, nil
		}
		return json.Marshal(c)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func decode(raw []byte) (*Cart, error) {
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

// MemoryStore is the in-process store used by tests and redis-less local runs.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.carts[key]
	if !ok {
		return &Cart{}, nil
	}
	return decode(raw)
}

func (s *MemoryStore) Update(_ context.Context, key string, fn func(*Cart) error) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Cart{}
	if raw, ok := s.carts[key]; ok {
		decoded, err := decode(raw)
		if err != nil {
			return nil, err
		}
		c = decoded
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		delete(s.carts, key)
		return c, nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	s.carts[key] = raw
	return c, nil
}

// Keys lists stored keys; tests use it to assert namespacing.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.carts))
	for k := range s.carts {
		out = append(out, k)
	}
	return out
}
