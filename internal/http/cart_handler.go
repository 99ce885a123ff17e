package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService is the owner cart API the handlers need.
type CartService interface {
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, error)
	AddLine(ctx context.Context, ownerID, productID, size string, quantity int) (*domain.Cart, error)
	SetQuantity(ctx context.Context, ownerID string, key domain.LineKey, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, ownerID string, key domain.LineKey) (*domain.Cart, error)
	ReplaceCart(ctx context.Context, ownerID string, cart *domain.Cart) (*domain.Cart, error)
	ClearCart(ctx context.Context, ownerID string) (*domain.Cart, error)
	Reconcile(ctx context.Context, guestID, ownerID string) (*domain.Cart, error)
}

type CartHandler struct {
	service     CartService
	timeout     time.Duration
	maxBodySize int64
	log         *zap.Logger
}

func NewCartHandler(service CartService, timeout time.Duration, maxBodySize int64, log *zap.Logger) *CartHandler {
	return &CartHandler{
		service:     service,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		log:         log,
	}
}

type AddLineRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
	Size      string `json:"size"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type ReplaceCartRequestDTO struct {
	Lines []AddLineRequestDTO `json:"lines"`
}

type ReconcileRequestDTO struct {
	GuestID string `json:"guestId"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ownerID, ok := ownerIDParam(w, r)
	if !ok {
		return
	}

	cart, err := h.service.GetCart(ctx, ownerID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(ownerID, cart))
}

func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ownerID, ok := ownerIDParam(w, r)
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
	if err := domain.ValidateLine(req.ProductID, *req.Quantity); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	cart, err := h.service.AddLine(ctx, ownerID, req.ProductID, req.Size, *req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(ownerID, cart))
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ownerID, ok := ownerIDParam(w, r)
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

	cart, err := h.service.SetQuantity(ctx, ownerID, key, *req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(ownerID, cart))
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ownerID, ok := ownerIDParam(w, r)
	if !ok {
		return
	}
	key, ok := lineKeyParam(w, r, h.log)
	if !ok {
		return
	}

	cart, err := h.service.RemoveLine(ctx, ownerID, key)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(ownerID, cart))
}

func (h *CartHandler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ownerID, ok := ownerIDParam(w, r)
	if !ok {
		return
	}

	var req ReplaceCartRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}
	replacement := domain.NewCart(ownerID)
	for _, l := range req.Lines {
		if l.Quantity == nil {
			respondError(w, http.StatusBadRequest, "invalid_argument", "quantity is required")
			return
		}
		if err := domain.ValidateLine(l.ProductID, *l.Quantity); err != nil {
			handleError(w, r, h.log, err)
			return
		}
		replacement.Lines = append(replacement.Lines, domain.CartLine{
			ProductID: l.ProductID,
			Size:      l.Size,
			Quantity:  *l.Quantity,
		})
	}

	cart, err := h.service.ReplaceCart(ctx, ownerID, replacement)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(ownerID, cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ownerID, ok := ownerIDParam(w, r)
	if !ok {
		return
	}

	cart, err := h.service.ClearCart(ctx, ownerID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(ownerID, cart))
}

// Reconcile merges a guest cart into the owner's cart after sign-in.
func (h *CartHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ownerID, ok := ownerIDParam(w, r)
	if !ok {
		return
	}

	var req ReconcileRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}
	guestID, err := uuid.Parse(req.GuestID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "guestId must be a UUID")
		return
	}

	// guest carts are stored under the canonical form, see guestIDParam
	cart, err := h.service.Reconcile(ctx, guestID.String(), ownerID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, toCartDTO(ownerID, cart))
}

func ownerIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := strings.TrimSpace(chi.URLParam(r, "ownerId"))
	if ownerID == "" {
		respondError(w, http.StatusBadRequest, "invalid_argument", "ownerId is required")
		return "", false
	}
	return ownerID, true
}

func lineKeyParam(w http.ResponseWriter, r *http.Request, log *zap.Logger) (domain.LineKey, bool) {
	key, err := domain.ParseLineID(chi.URLParam(r, "lineId"))
	if err != nil {
		handleError(w, r, log, err)
		return domain.LineKey{}, false
	}
	return key, true
}
