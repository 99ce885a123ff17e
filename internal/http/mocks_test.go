package http

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
)

// fakeCarts is an in-memory CartService with the same quantity semantics as the real one.
type fakeCarts struct {
	m      sync.Mutex
	carts  map[string]*domain.Cart
	guests *fakeGuests
	err    error
}

func newFakeCarts(guests *fakeGuests) *fakeCarts {
	return &fakeCarts{carts: map[string]*domain.Cart{}, guests: guests}
}

func (f *fakeCarts) GetCart(_ context.Context, ownerID string) (*domain.Cart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.carts[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (f *fakeCarts) AddLine(_ context.Context, ownerID, productID, size string, quantity int) (*domain.Cart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.carts[ownerID]
	if !ok {
		c = domain.NewCart(ownerID)
		f.carts[ownerID] = c
	}
	if _, err := c.AddLine(productID, size, quantity); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (f *fakeCarts) mutate(ownerID string, fn func(*domain.Cart)) (*domain.Cart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.carts[ownerID]
	if !ok {
		return domain.NewCart(ownerID), nil
	}
	fn(c)
	return c.Clone(), nil
}

func (f *fakeCarts) SetQuantity(_ context.Context, ownerID string, key domain.LineKey, quantity int) (*domain.Cart, error) {
	return f.mutate(ownerID, func(c *domain.Cart) { c.SetQuantity(key, quantity) })
}

func (f *fakeCarts) RemoveLine(_ context.Context, ownerID string, key domain.LineKey) (*domain.Cart, error) {
	return f.mutate(ownerID, func(c *domain.Cart) { c.RemoveLine(key) })
}

func (f *fakeCarts) ClearCart(_ context.Context, ownerID string) (*domain.Cart, error) {
	return f.mutate(ownerID, func(c *domain.Cart) { c.Clear() })
}

func (f *fakeCarts) ReplaceCart(_ context.Context, ownerID string, cart *domain.Cart) (*domain.Cart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := domain.NewCart(ownerID)
	c.Lines = domain.Normalize(cart.Lines)
	f.carts[ownerID] = c
	return c.Clone(), nil
}

func (f *fakeCarts) Reconcile(ctx context.Context, guestID, ownerID string) (*domain.Cart, error) {
	local, err := f.guests.Load(ctx, guestID)
	if err != nil {
		return nil, err
	}
	server, err := f.GetCart(ctx, ownerID)
	if err != nil && err != domain.ErrNotFound {
		return nil, err
	}
	merged := domain.Merge(server, local)
	out, err := f.ReplaceCart(ctx, ownerID, merged)
	if err != nil {
		return nil, err
	}
	return out, f.guests.Clear(ctx, guestID)
}

type fakeGuests struct {
	m     sync.Mutex
	carts map[string]*domain.Cart
	err   error
}

func newFakeGuests() *fakeGuests {
	return &fakeGuests{carts: map[string]*domain.Cart{}}
}

func (f *fakeGuests) Load(_ context.Context, guestID string) (*domain.Cart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.carts[guestID]; ok {
		return c.Clone(), nil
	}
	return domain.NewCart(""), nil
}

func (f *fakeGuests) update(guestID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.carts[guestID]
	if !ok {
		c = domain.NewCart("")
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	f.carts[guestID] = c
	return c.Clone(), nil
}

func (f *fakeGuests) AddLine(_ context.Context, guestID, productID, size string, quantity int) (*domain.Cart, error) {
	return f.update(guestID, func(c *domain.Cart) error {
		_, err := c.AddLine(productID, size, quantity)
		return err
	})
}

func (f *fakeGuests) SetQuantity(_ context.Context, guestID string, key domain.LineKey, quantity int) (*domain.Cart, error) {
	return f.update(guestID, func(c *domain.Cart) error {
		c.SetQuantity(key, quantity)
		return nil
	})
}

func (f *fakeGuests) RemoveLine(_ context.Context, guestID string, key domain.LineKey) (*domain.Cart, error) {
	return f.update(guestID, func(c *domain.Cart) error {
		c.RemoveLine(key)
		return nil
	})
}

func (f *fakeGuests) Clear(_ context.Context, guestID string) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.carts, guestID)
	return nil
}
