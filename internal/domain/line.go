package domain

import (
	"encoding/base64"
	"strings"
)

const lineIDSeparator = "\x00"

// LineKey is the identity of a cart line. Two lines with equal keys are the same line.
type LineKey struct {
	ProductID string
	Size      string
}

// NewLineKey normalizes both parts so that an absent size and an empty size compare equal.
func NewLineKey(productID, size string) LineKey {
	return LineKey{
		ProductID: strings.TrimSpace(productID),
		Size:      strings.TrimSpace(size),
	}
}

// ID returns the URL-safe line id used by the HTTP API.
func (k LineKey) ID() string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.ProductID + lineIDSeparator + k.Size))
}

// ParseLineID is the inverse of LineKey.ID.
func ParseLineID(id string) (LineKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return LineKey{}, newValidationError("lineId", "not a valid line id")
	}
	productID, size, ok := strings.Cut(string(raw), lineIDSeparator)
	if !ok || strings.TrimSpace(productID) == "" {
		return LineKey{}, newValidationError("lineId", "not a valid line id")
	}
	return NewLineKey(productID, size), nil
}

// CartLine is one (product, size) selection with its quantity.
type CartLine struct {
	ProductID string `bson:"product_id" json:"productId"`
	Size      string `bson:"size" json:"size"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

func (l CartLine) Key() LineKey {
	return NewLineKey(l.ProductID, l.Size)
}

// SameLine reports whether a and b refer to the same purchasable line.
func SameLine(a, b CartLine) bool {
	return a.Key() == b.Key()
}

// ValidateLine checks the input of an add operation.
func ValidateLine(productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return newValidationError("productId", "must not be empty")
	}
	if quantity < 1 {
		return newValidationError("quantity", "must be a positive integer")
	}
	return nil
}
