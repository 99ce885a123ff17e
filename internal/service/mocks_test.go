package service

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront-cart/internal/cache"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
)

type mockRepository struct {
	m          sync.Mutex
	carts      map[string]*domain.Cart
	err        error
	replaceErr error
	fetches    int
	replaces   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: map[string]*domain.Cart{}}
}

func (m *mockRepository) put(cart *domain.Cart) {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[cart.OwnerID] = cart.Clone()
}

func (m *mockRepository) get(ownerID string) *domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	return m.carts[ownerID].Clone()
}

func (m *mockRepository) FetchCart(_ context.Context, ownerID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.fetches++
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cart.Clone(), nil
}

func (m *mockRepository) ReplaceCart(_ context.Context, ownerID string, cart *domain.Cart) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.replaces++
	if m.err != nil {
		return nil, m.err
	}
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	stored := domain.NewCart(ownerID)
	stored.Lines = domain.Normalize(cart.Lines)
	m.carts[ownerID] = stored
	return stored.Clone(), nil
}

func (m *mockRepository) AppendLine(_ context.Context, ownerID, productID, size string, quantity int) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[ownerID]
	if !ok {
		cart = domain.NewCart(ownerID)
		m.carts[ownerID] = cart
	}
	if _, err := cart.AddLine(productID, size, quantity); err != nil {
		return nil, err
	}
	return cart.Clone(), nil
}

func (m *mockRepository) mutate(ownerID string, fn func(*domain.Cart)) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	fn(cart)
	return cart.Clone(), nil
}

func (m *mockRepository) UpdateLineQuantity(_ context.Context, ownerID string, key domain.LineKey, quantity int) (*domain.Cart, error) {
	return m.mutate(ownerID, func(c *domain.Cart) { c.SetQuantity(key, quantity) })
}

func (m *mockRepository) RemoveLine(_ context.Context, ownerID string, key domain.LineKey) (*domain.Cart, error) {
	return m.mutate(ownerID, func(c *domain.Cart) { c.RemoveLine(key) })
}

func (m *mockRepository) ClearCart(_ context.Context, ownerID string) (*domain.Cart, error) {
	return m.mutate(ownerID, func(c *domain.Cart) { c.Clear() })
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, ownerID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[ownerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart.Clone(), nil
}

func (m *mockCache) Set(_ context.Context, ownerID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[ownerID] = cart.Clone()
	return m.err
}

func (m *mockCache) Delete(_ context.Context, ownerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, ownerID)
	return m.err
}

func (m *mockCache) has(ownerID string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[ownerID]
	return ok
}

type mockLocalStore struct {
	m         sync.Mutex
	carts     map[string]*domain.Cart
	loadErr   error
	clearErr  error
	afterLoad func()
}

func newMockLocalStore() *mockLocalStore {
	return &mockLocalStore{carts: map[string]*domain.Cart{}}
}

func (m *mockLocalStore) put(localID string, lines ...domain.CartLine) {
	m.m.Lock()
	defer m.m.Unlock()
	cart := domain.NewCart("")
	cart.Lines = append(cart.Lines, lines...)
	m.carts[localID] = cart
}

func (m *mockLocalStore) Load(_ context.Context, localID string) (*domain.Cart, error) {
	cart, err := m.load(localID)
	if m.afterLoad != nil {
		m.afterLoad()
	}
	return cart, err
}

func (m *mockLocalStore) load(localID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	cart, ok := m.carts[localID]
	if !ok {
		return domain.NewCart(""), nil
	}
	return cart.Clone(), nil
}

func (m *mockLocalStore) Drain(_ context.Context, localID string, taken *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	cart, ok := m.carts[localID]
	if !ok {
		return nil
	}
	cart.Deduct(taken)
	if cart.IsEmpty() {
		delete(m.carts, localID)
	}
	return nil
}

func (m *mockLocalStore) add(localID string, line domain.CartLine) {
	m.m.Lock()
	defer m.m.Unlock()
	cart, ok := m.carts[localID]
	if !ok {
		cart = domain.NewCart("")
		m.carts[localID] = cart
	}
	_, _ = cart.AddLine(line.ProductID, line.Size, line.Quantity)
}

func (m *mockLocalStore) get(localID string) *domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	return m.carts[localID].Clone()
}
