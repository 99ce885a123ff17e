package service

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/cache"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/repository"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	guests LocalStore
	log    *zap.Logger
	sfg    singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, guests LocalStore, log *zap.Logger) *CartService {
	return &CartService{
		repo:   repo,
		cache:  cache,
		guests: guests,
		log:    log,
	}
}

// GetCart returns the owner's cart, or domain.ErrNotFound when the owner has none.
func (s *CartService) GetCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(ownerID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, ownerID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get failed", zap.String("owner_id", ownerID), zap.Error(err))
		}

		cart, err = s.repo.FetchCart(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		s.fillCache(ownerID, cart)
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight shares one result between callers
	return v.(*domain.Cart).Clone(), nil
}

func (s *CartService) AddLine(ctx context.Context, ownerID, productID, size string, quantity int) (*domain.Cart, error) {
	if err := domain.ValidateLine(productID, quantity); err != nil {
		return nil, err
	}
	cart, err := s.repo.AppendLine(ctx, ownerID, productID, size, quantity)
	if err != nil {
		s.log.Error("repo append line failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	s.invalidateCache(ownerID)
	return cart, nil
}

// SetQuantity never creates a line. On a missing cart it returns an empty one.
func (s *CartService) SetQuantity(ctx context.Context, ownerID string, key domain.LineKey, quantity int) (*domain.Cart, error) {
	cart, err := s.repo.UpdateLineQuantity(ctx, ownerID, key, quantity)
	return s.afterMutation(ownerID, "update line quantity", cart, err)
}

func (s *CartService) RemoveLine(ctx context.Context, ownerID string, key domain.LineKey) (*domain.Cart, error) {
	cart, err := s.repo.RemoveLine(ctx, ownerID, key)
	return s.afterMutation(ownerID, "remove line", cart, err)
}

func (s *CartService) ReplaceCart(ctx context.Context, ownerID string, cart *domain.Cart) (*domain.Cart, error) {
	replaced, err := s.repo.ReplaceCart(ctx, ownerID, cart)
	return s.afterMutation(ownerID, "replace cart", replaced, err)
}

func (s *CartService) ClearCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	cart, err := s.repo.ClearCart(ctx, ownerID)
	return s.afterMutation(ownerID, "clear cart", cart, err)
}

// Reconcile merges the guest cart into the owner's cart and clears the guest cart.
func (s *CartService) Reconcile(ctx context.Context, guestID, ownerID string) (*domain.Cart, error) {
	r := NewReconciler(s.guests, s.repo, s.log)
	cart, err := r.Reconcile(ctx, guestID, ownerID)
	if cart != nil {
		s.invalidateCache(ownerID)
	}
	return cart, err
}

func (s *CartService) afterMutation(ownerID, op string, cart *domain.Cart, err error) (*domain.Cart, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewCart(ownerID), nil
	}
	if err != nil {
		s.log.Error("repo "+op+" failed", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}

	s.invalidateCache(ownerID)
	return cart, nil
}

func (s *CartService) fillCache(ownerID string, cart *domain.Cart) {
	snapshot := cart.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.cache.Set(ctx, ownerID, snapshot); err != nil {
			s.log.Warn("cache set failed", zap.String("owner_id", ownerID), zap.Error(err))
		}
	}()
}

func (s *CartService) invalidateCache(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}
