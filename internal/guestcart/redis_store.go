// Package guestcart keeps the carts of anonymous shoppers in Redis until they
// sign in and the cart is reconciled into their account cart.
package guestcart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 7 * 24 * time.Hour

	maxUpdateRetries = 5
)

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

var errTooManyRetries = errors.New("guest cart update retries exhausted")

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Load returns the guest cart, or an empty cart when none is stored.
func (s *RedisStore) Load(ctx context.Context, guestID string) (*domain.Cart, error) {
	return load(ctx, s.client, guestID)
}

// Save overwrites the guest cart and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, guestID string, cart *domain.Cart) error {
	data, err := encode(cart)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, guestKey(guestID), data, s.ttl).Err(); err != nil {
		return domain.NewTransportError("guest cart save", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, guestID string) error {
	if err := s.client.Del(ctx, guestKey(guestID)).Err(); err != nil {
		return domain.NewTransportError("guest cart clear", err)
	}
	return nil
}

// Drain removes the quantities of taken from the guest cart and deletes the
// cart once nothing is left. Lines added after taken was loaded stay behind.
func (s *RedisStore) Drain(ctx context.Context, guestID string, taken *domain.Cart) error {
	_, err := s.update(ctx, guestID, func(c *domain.Cart) error {
		c.Deduct(taken)
		return nil
	})
	return err
}

func (s *RedisStore) AddLine(ctx context.Context, guestID, productID, size string, quantity int) (*domain.Cart, error) {
	if err := domain.ValidateLine(productID, quantity); err != nil {
		return nil, err
	}
	return s.update(ctx, guestID, func(c *domain.Cart) error {
		_, err := c.AddLine(productID, size, quantity)
		return err
	})
}

func (s *RedisStore) SetQuantity(ctx context.Context, guestID string, key domain.LineKey, quantity int) (*domain.Cart, error) {
	return s.update(ctx, guestID, func(c *domain.Cart) error {
		c.SetQuantity(key, quantity)
		return nil
	})
}

func (s *RedisStore) RemoveLine(ctx context.Context, guestID string, key domain.LineKey) (*domain.Cart, error) {
	return s.update(ctx, guestID, func(c *domain.Cart) error {
		c.RemoveLine(key)
		return nil
	})
}

// update applies fn under WATCH so concurrent writers to the same guest cart
// retry instead of overwriting each other. An emptied cart is deleted.
func (s *RedisStore) update(ctx context.Context, guestID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	key := guestKey(guestID)
	var result *domain.Cart

	txf := func(tx *redis.Tx) error {
		cart, err := load(ctx, tx, guestID)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}
		data, err := encode(cart)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if cart.IsEmpty() {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = cart
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if domain.IsValidation(err) {
				return nil, err
			}
			return nil, domain.NewTransportError("guest cart update", err)
		}
		return result, nil
	}
	return nil, domain.NewTransportError("guest cart update", errTooManyRetries)
}

func load(ctx context.Context, c getter, guestID string) (*domain.Cart, error) {
	data, err := c.Get(ctx, guestKey(guestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewCart(""), nil
	}
	if err != nil {
		return nil, domain.NewTransportError("guest cart load", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, errors.Wrap(err, "unmarshal guest cart failed")
	}
	cart.OwnerID = ""
	cart.Lines = domain.Normalize(cart.Lines)
	return &cart, nil
}

func encode(cart *domain.Cart) ([]byte, error) {
	stored := domain.NewCart("")
	if cart != nil {
		stored.Lines = domain.Normalize(cart.Lines)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, errors.Wrap(err, "marshal guest cart failed")
	}
	return data, nil
}

func guestKey(guestID string) string {
	return "guestcart:" + guestID
}
