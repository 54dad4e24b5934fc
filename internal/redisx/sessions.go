package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/redis/go-redis/v9"
)

// CartSessions keeps one encoded cart per session id with a sliding TTL.
type CartSessions struct {
	RDB *redis.Client
	TTL time.Duration
}

func (s *CartSessions) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return TTLCart
}

// Load returns an empty cart for unknown sessions.
func (s *CartSessions) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	b, err := s.RDB.Get(ctx, fmt.Sprintf(KeyCart, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart.Decode(b)
}

// Save writes the cart; an empty cart deletes the key.
func (s *CartSessions) Save(ctx context.Context, sessionID string, c *cart.Cart) error {
	key := fmt.Sprintf(KeyCart, sessionID)
	if c == nil || c.IsEmpty() {
		if err := s.RDB.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		return nil
	}
	b, err := c.Encode()
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if err := s.RDB.Set(ctx, key, b, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
