package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GuestCartStore is the anonymous cart store. A missing guest cart reads as empty.
type GuestCartStore interface {
	Load(ctx context.Context, guestID string) (*domain.Cart, error)
	AddLine(ctx context.Context, guestID, productID, size string, quantity int) (*domain.Cart, error)
	SetQuantity(ctx context.Context, guestID string, key domain.LineKey, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, guestID string, key domain.LineKey) (*domain.Cart, error)
	Clear(ctx context.Context, guestID string) error
}

type GuestHandler struct {
	store       GuestCartStore
	timeout     time.Duration
	maxBodySize int64
	log         *zap.Logger
}

func NewGuestHandler(store GuestCartStore, timeout time.Duration, maxBodySize int64, log *zap.Logger) *GuestHandler {
	return &GuestHandler{
		store:       store,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		log:         log,
	}
}

type GuestIDResponse struct {
	GuestID string `json:"guestId"`
}

// Create issues a guest id. The cart itself is created by the first add.
func (h *GuestHandler) Create(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusCreated, GuestIDResponse{GuestID: uuid.NewString()})
}

func (h *GuestHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	guestID, ok := guestIDParam(w, r)
	if !ok {
		return
	}

	cart, err := h.store.Load(ctx, guestID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO("", cart))
}

func (h *GuestHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	guestID, ok := guestIDParam(w, r)
	if !ok {
		return
	}

	var req AddLineRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "quantity is required")
		return
	}

	cart, err := h.store.AddLine(ctx, guestID, req.ProductID, req.Size, *req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO("", cart))
}

func (h *GuestHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	guestID, ok := guestIDParam(w, r)
	if !ok {
		return
	}
	key, ok := lineKeyParam(w, r, h.log)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "quantity is required")
		return
	}

	cart, err := h.store.SetQuantity(ctx, guestID, key, *req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO("", cart))
}

func (h *GuestHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	guestID, ok := guestIDParam(w, r)
	if !ok {
		return
	}
	key, ok := lineKeyParam(w, r, h.log)
	if !ok {
		return
	}

	cart, err := h.store.RemoveLine(ctx, guestID, key)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO("", cart))
}

func (h *GuestHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	guestID, ok := guestIDParam(w, r)
	if !ok {
		return
	}

	if err := h.store.Clear(ctx, guestID); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO("", nil))
}

func guestIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "guestId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "guestId must be a UUID")
		return "", false
	}
	return id.String(), true
}
