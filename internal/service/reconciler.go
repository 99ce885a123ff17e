package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// ErrLocalClearFailed means the merged cart was stored but the local cart could
// not be cleared. Retrying the reconciliation would count the local lines twice.
var ErrLocalClearFailed = errors.New("local cart not cleared after reconciliation")

// LocalStore holds carts accumulated without an authenticated owner.
// Drain removes the quantities of taken from the local cart; lines added since
// taken was loaded must survive it.
type LocalStore interface {
	Load(ctx context.Context, localID string) (*domain.Cart, error)
	Drain(ctx context.Context, localID string, taken *domain.Cart) error
}

// Transport is the authoritative store of owner carts.
type Transport interface {
	FetchCart(ctx context.Context, ownerID string) (*domain.Cart, error)
	ReplaceCart(ctx context.Context, ownerID string, cart *domain.Cart) (*domain.Cart, error)
}

type Reconciler struct {
	local  LocalStore
	remote Transport
	log    *zap.Logger
}

func NewReconciler(local LocalStore, remote Transport, log *zap.Logger) *Reconciler {
	return &Reconciler{local: local, remote: remote, log: log}
}

// Reconcile adds the local cart's lines to the owner's cart. The merged lines
// leave the local cart only after the transport confirmed the replacement, so a
// failed attempt leaves both carts as they were and can be retried.
func (r *Reconciler) Reconcile(ctx context.Context, localID, ownerID string) (*domain.Cart, error) {
	log := r.log.With(zap.String("local_id", localID), zap.String("owner_id", ownerID))

	local, err := r.local.Load(ctx, localID)
	if err != nil {
		return nil, errors.Wrap(err, "load local cart")
	}

	server, err := r.remote.FetchCart(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		server, err = domain.NewCart(ownerID), nil
	}
	if err != nil {
		log.Error("fetch owner cart failed", zap.Error(err))
		return nil, domain.NewTransportError("fetch", err)
	}

	if local.IsEmpty() {
		return server, nil
	}

	merged := domain.Merge(server, local)
	merged.OwnerID = ownerID

	result, err := r.remote.ReplaceCart(ctx, ownerID, merged)
	if err != nil {
		log.Error("replace owner cart failed, local cart kept", zap.Error(err))
		return nil, domain.NewTransportError("replace", err)
	}

	if err := r.local.Drain(ctx, localID, local); err != nil {
		log.Error("clear local cart failed", zap.Error(err))
		return result, fmt.Errorf("%w: %w", ErrLocalClearFailed, err)
	}

	log.Info("cart reconciled",
		zap.Int("local_items", local.TotalItemCount()),
		zap.Int("total_items", result.TotalItemCount()),
	)
	return result, nil
}
