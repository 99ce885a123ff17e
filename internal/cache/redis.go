package cache

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBaseTTL = 15 * time.Minute
	maxJitter      = 5 * time.Minute
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultBaseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, ownerID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get failed")
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart failed")
	}

	return &cart, nil
}

// Set stores the cart with a jittered TTL so entries written together do not expire together.
func (r *RedisCache) Set(ctx context.Context, ownerID string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return errors.Wrap(err, "marshal cart failed")
	}

	ttl := r.baseTTL + time.Duration(rand.Int63n(int64(maxJitter)))
	if err := r.client.Set(ctx, cacheKey(ownerID), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set failed")
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, ownerID string) error {
	if err := r.client.Del(ctx, cacheKey(ownerID)).Err(); err != nil {
		return errors.Wrap(err, "redis delete failed")
	}

	return nil
}

func cacheKey(ownerID string) string {
	return "cart:" + ownerID
}
