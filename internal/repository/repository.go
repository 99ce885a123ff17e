package repository

import (
	"context"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
)

// CartRepository is the server side of the cart transport.
// Every method returns the cart as stored after the operation.
type CartRepository interface {
	FetchCart(ctx context.Context, ownerID string) (*domain.Cart, error)
	ReplaceCart(ctx context.Context, ownerID string, cart *domain.Cart) (*domain.Cart, error)
	AppendLine(ctx context.Context, ownerID, productID, size string, quantity int) (*domain.Cart, error)
	UpdateLineQuantity(ctx context.Context, ownerID string, key domain.LineKey, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, ownerID string, key domain.LineKey) (*domain.Cart, error)
	ClearCart(ctx context.Context, ownerID string) (*domain.Cart, error)
}
