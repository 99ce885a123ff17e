package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/service"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type CartDTO struct {
	OwnerID string    `json:"ownerId"`
	Lines   []LineDTO `json:"lines"`
}

type LineDTO struct {
	LineID    string `json:"lineId"`
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

func toCartDTO(ownerID string, c *domain.Cart) CartDTO {
	dto := CartDTO{OwnerID: ownerID, Lines: make([]LineDTO, 0)}
	if c == nil {
		return dto
	}
	for _, l := range c.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			LineID:    l.Key().ID(),
			ProductID: l.ProductID,
			Size:      l.Size,
			Quantity:  l.Quantity,
		})
	}
	return dto
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps service errors onto HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, "invalid_argument", ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "cart not found")
	case errors.Is(err, service.ErrLocalClearFailed):
		log.Error("guest cart not cleared", zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "guest_cart_not_cleared",
			"cart merged but guest cart was not cleared, discard the guest cart instead of retrying")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	case domain.IsTransport(err):
		log.Error("cart store unavailable", zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "cart store unavailable")
	default:
		log.Error("internal error", zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON reads a bounded, strict JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) bool {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
