package cache

import (
	"context"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-faster/errors"
)

// CartCache holds read-through copies of owner carts.
type CartCache interface {
	Get(ctx context.Context, ownerID string) (*domain.Cart, error)
	Set(ctx context.Context, ownerID string, cart *domain.Cart) error
	Delete(ctx context.Context, ownerID string) error
}

var ErrCacheMiss = errors.New("cache miss")
