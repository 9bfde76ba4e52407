package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/cache"
)

// Store keeps one cart per user. Get returns an empty cart for new users.
type Store interface {
	Get(ctx context.Context, userID uint) (*billing.Cart, error)
	Save(ctx context.Context, userID uint, cart *billing.Cart) error
	Clear(ctx context.Context, userID uint) error
}

// NewStore uses Redis when it is configured and process memory otherwise.
func NewStore(c *cache.Cache, ttl time.Duration) Store {
	if c.Enabled() {
		return &RedisStore{cache: c, ttl: ttl}
	}
	return NewMemoryStore()
}

type MemoryStore struct {
	mu    sync.Mutex
	carts map[uint][]billing.CartLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[uint][]billing.CartLine{}}
}

func (m *MemoryStore) Get(ctx context.Context, userID uint) (*billing.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.carts[userID]
	return &billing.Cart{Lines: append([]billing.CartLine(nil), lines...)}, nil
}

func (m *MemoryStore) Save(ctx context.Context, userID uint, cart *billing.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = append([]billing.CartLine(nil), cart.Lines...)
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

type RedisStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func cartKey(userID uint) string { return fmt.Sprintf("cart:%d", userID) }

func (r *RedisStore) Get(ctx context.Context, userID uint) (*billing.Cart, error) {
	var cart billing.Cart
	if _, err := r.cache.GetObject(ctx, cartKey(userID), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *RedisStore) Save(ctx context.Context, userID uint, cart *billing.Cart) error {
	return r.cache.SetObject(ctx, cartKey(userID), cart, r.ttl)
}

func (r *RedisStore) Clear(ctx context.Context, userID uint) error {
	return r.cache.Delete(ctx, cartKey(userID))
}
